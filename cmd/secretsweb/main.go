// Command secretsweb runs the secrets board as a standalone web server.
//
// Configuration is environment driven:
//
//	SECRETSWEB_ADDR          listen address, defaults to :3000
//	SECRETSWEB_STORE         fs | postgres | datastore, defaults to fs
//	SECRETSWEB_STORAGE_PATH  data directory for the fs store
//	SECRETSWEB_DB_DSN        postgres DSN for the postgres store
//	SECRETSWEB_GCP_PROJECT   project id for the datastore store
//	SECRETSWEB_NAMESPACE     datastore namespace, optional
//
// Google login is enabled when OAUTH2_GOOGLE_CLIENT_ID,
// OAUTH2_GOOGLE_CLIENT_SECRET and OAUTH2_GOOGLE_CALLBACK_URL are set.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"cloud.google.com/go/datastore"
	"gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"

	sw "github.com/panyam/secretsweb"
	swoauth2 "github.com/panyam/secretsweb/oauth2"
	"github.com/panyam/secretsweb/stores"
	gaestore "github.com/panyam/secretsweb/stores/gae"
	gormstore "github.com/panyam/secretsweb/stores/gorm"
)

func main() {
	addr := os.Getenv("SECRETSWEB_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	users, err := newUserStore()
	if err != nil {
		log.Fatalf("store setup failed: %v", err)
	}

	app := sw.New("Secretsweb", users)
	if os.Getenv("OAUTH2_GOOGLE_CLIENT_ID") != "" {
		app.Google = swoauth2.NewGoogleOAuth2("", "", "", app.HandleOAuthUser)
	} else {
		slog.Info("OAUTH2_GOOGLE_CLIENT_ID not set, google login disabled")
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	slog.Info("starting secretsweb", "addr", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}

func newUserStore() (sw.UserStore, error) {
	switch os.Getenv("SECRETSWEB_STORE") {
	case "postgres":
		dsn := os.Getenv("SECRETSWEB_DB_DSN")
		db, err := gormlib.Open(postgres.Open(dsn), &gormlib.Config{
			TranslateError: true,
		})
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		return gormstore.NewUserStore(db), nil
	case "datastore":
		client, err := datastore.NewClient(context.Background(), os.Getenv("SECRETSWEB_GCP_PROJECT"))
		if err != nil {
			return nil, err
		}
		return gaestore.NewUserStore(client, os.Getenv("SECRETSWEB_NAMESPACE")), nil
	default:
		path := os.Getenv("SECRETSWEB_STORAGE_PATH")
		if path == "" {
			path = "./data"
		}
		return stores.NewFSUserStore(path), nil
	}
}
