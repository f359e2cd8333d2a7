package secretsweb

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// User represents one registrant.
//
// A user always has at least one authentication method: a local credential
// (Username + PasswordHash) created through registration, a Google subject ID
// created through the OAuth callback, or both. The ID is immutable and unique.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	GoogleID     string    `json:"google_id,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasLocalCredential reports whether the user can log in with a password.
func (u *User) HasLocalCredential() bool {
	return u.Username != "" && u.PasswordHash != ""
}

// HasGoogleCredential reports whether the user can log in via Google.
func (u *User) HasGoogleCredential() bool {
	return u.GoogleID != ""
}

var (
	// ErrUserNotFound is returned by lookups that match no record.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned by Create when the username already exists.
	// The first record is never mutated by the failed attempt.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrGoogleIDTaken is returned by Create when the google subject ID
	// already belongs to another user.
	ErrGoogleIDTaken = errors.New("google id is already taken")

	// ErrNoAuthMethod is returned by Create when the user has neither a local
	// credential nor a Google ID.
	ErrNoAuthMethod = errors.New("user needs a local credential or a google id")
)

// UserStore is the persistence contract for user records.
//
// Every method is a single atomic operation; the application never holds a
// multi-step transaction across calls. Implementations must enforce
// uniqueness of Username and GoogleID.
type UserStore interface {
	// Create persists a new user. Fails with ErrUsernameTaken or
	// ErrGoogleIDTaken if either identifier is in use, and ErrNoAuthMethod
	// if no authentication method is set.
	Create(ctx context.Context, user *User) error

	// GetByID returns the user with the given ID or ErrUserNotFound.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername returns the user with the given username or ErrUserNotFound.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// FindOrCreateByGoogleID returns the user owning the given Google subject
	// ID, creating one if none exists. The lookup-or-insert is atomic: under
	// concurrent calls with the same ID exactly one user is ever created.
	// Reports whether a new record was created.
	FindOrCreateByGoogleID(ctx context.Context, googleID string) (user *User, created bool, err error)

	// SetSecret overwrites the user's secret unconditionally (last write wins).
	SetSecret(ctx context.Context, userID string, secret string) error

	// ListSecrets returns the secret text of every user whose secret is
	// non-empty, with no attribution and in no particular order.
	ListSecrets(ctx context.Context) ([]string, error)
}

// NewUserID generates a cryptographically secure user ID.
func NewUserID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
