package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// HandleUserFunc is called with the provider token and userinfo document
// after a successful auth flow and redirect.
type HandleUserFunc func(authtype string, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

func generateStateOauthCookie(w http.ResponseWriter) string {
	var expiration = time.Now().Add(30 * 24 * time.Hour)
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	cookie := http.Cookie{Name: "oauthstate", Value: state, Path: "/", Expires: expiration}
	http.SetCookie(w, &cookie)
	return state
}

// OauthRedirector begins the handshake: it sets the oauthState cookie (and a
// callback url cookie so we know where to redirect back to) and sends the
// client to the provider's authorization endpoint.
func OauthRedirector(oauthConfig *oauth2.Config) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		callbackURL := r.URL.Query().Get("callbackURL")
		if callbackURL != "" {
			var expiration = time.Now().Add(24 * time.Hour)
			http.SetCookie(w, &http.Cookie{
				Name:    "oauthCallbackURL",
				Value:   callbackURL,
				Path:    "/",
				Expires: expiration,
				MaxAge:  120, // keep this short
			})
		}
		oauthState := generateStateOauthCookie(w)
		u := oauthConfig.AuthCodeURL(oauthState)
		http.Redirect(w, r, u, http.StatusFound)
	}
}
