package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	sw "github.com/panyam/secretsweb"
)

// Kind constants for Datastore entities
const (
	KindUser     = "User"
	KindUsername = "Username"
	KindGoogleID = "GoogleID"
)

// UserEntity is the Datastore entity for users
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Username     string         `datastore:"username"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	GoogleID     string         `datastore:"google_id"`
	Secret       string         `datastore:"secret,noindex"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *sw.User {
	return &sw.User{
		ID:           e.Key.Name,
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		GoogleID:     e.GoogleID,
		Secret:       e.Secret,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func UserToEntity(u *sw.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:          key,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// MappingEntity is a uniqueness reservation pointing back at the owning
// user. Username and GoogleID reservations are keyed by the reserved value
// itself, so a transactional Get-then-Put on the key is an atomic
// lookup-or-insert.
type MappingEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}
