// Package gae implements the UserStore over Google Cloud Datastore.
package gae

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	sw "github.com/panyam/secretsweb"
)

// UserStore implements sw.UserStore using Google Cloud Datastore.
//
// Uniqueness of usernames and Google IDs is enforced through reservation
// entities created in the same transaction as the user, so the
// find-or-create path is atomic under concurrent callbacks.
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) usernameKey(username string) *datastore.Key {
	return s.namespacedKey(KindUsername, strings.ToLower(username))
}

func (s *UserStore) Create(ctx context.Context, user *sw.User) error {
	if !user.HasLocalCredential() && !user.HasGoogleCredential() {
		return sw.ErrNoAuthMethod
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	userKey := s.namespacedKey(KindUser, user.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if user.Username != "" {
			unameKey := s.usernameKey(user.Username)
			var existing MappingEntity
			err := tx.Get(unameKey, &existing)
			if err == nil {
				return sw.ErrUsernameTaken
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
			if _, err := tx.Put(unameKey, &MappingEntity{Key: unameKey, UserID: user.ID, CreatedAt: now}); err != nil {
				return err
			}
		}
		if user.GoogleID != "" {
			gidKey := s.namespacedKey(KindGoogleID, user.GoogleID)
			var existing MappingEntity
			err := tx.Get(gidKey, &existing)
			if err == nil {
				return sw.ErrGoogleIDTaken
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
			if _, err := tx.Put(gidKey, &MappingEntity{Key: gidKey, UserID: user.ID, CreatedAt: now}); err != nil {
				return err
			}
		}
		_, err := tx.Put(userKey, UserToEntity(user, userKey))
		return err
	})
	return err
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*sw.User, error) {
	key := s.namespacedKey(KindUser, id)
	var entity UserEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sw.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*sw.User, error) {
	var mapping MappingEntity
	if err := s.client.Get(ctx, s.usernameKey(username), &mapping); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sw.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, mapping.UserID)
}

// FindOrCreateByGoogleID runs the lookup-or-insert in a single transaction
// keyed on the Google ID reservation, so exactly one user is ever created
// for a given subject ID no matter how many callbacks race.
func (s *UserStore) FindOrCreateByGoogleID(ctx context.Context, googleID string) (*sw.User, bool, error) {
	gidKey := s.namespacedKey(KindGoogleID, googleID)
	var user *sw.User
	created := false

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		user = nil
		created = false

		var mapping MappingEntity
		err := tx.Get(gidKey, &mapping)
		if err == nil {
			userKey := s.namespacedKey(KindUser, mapping.UserID)
			var entity UserEntity
			if err := tx.Get(userKey, &entity); err != nil {
				return err
			}
			entity.Key = userKey
			user = entity.ToUser()
			return nil
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		now := time.Now()
		user = &sw.User{
			ID:        sw.NewUserID(),
			GoogleID:  googleID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		userKey := s.namespacedKey(KindUser, user.ID)
		if _, err := tx.Put(gidKey, &MappingEntity{Key: gidKey, UserID: user.ID, CreatedAt: now}); err != nil {
			return err
		}
		if _, err := tx.Put(userKey, UserToEntity(user, userKey)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *UserStore) SetSecret(ctx context.Context, userID string, secret string) error {
	userKey := s.namespacedKey(KindUser, userID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return sw.ErrUserNotFound
			}
			return err
		}
		entity.Key = userKey
		entity.Secret = secret
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(userKey, &entity)
		return err
	})
	return err
}

func (s *UserStore) ListSecrets(ctx context.Context) ([]string, error) {
	// Secret is stored unindexed, so filter client side like the rest of the
	// stores do.
	query := datastore.NewQuery(KindUser).Namespace(s.namespace)
	it := s.client.Run(ctx, query)

	var secrets []string
	for {
		var entity UserEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if entity.Secret != "" {
			secrets = append(secrets, entity.Secret)
		}
	}
	return secrets, nil
}
