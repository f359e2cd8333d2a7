package secretsweb

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Credentials represents a username/password pair for signup or login.
type Credentials struct {
	Username string
	Password string
}

// CredentialsValidator validates credentials during login and returns the user.
type CredentialsValidator func(ctx context.Context, username, password string) (*User, error)

// SignupValidator validates credentials during signup.
type SignupValidator func(creds *Credentials) error

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// DefaultSignupValidator provides sensible default validation for signup
var DefaultSignupValidator SignupValidator = func(creds *Credentials) error {
	// Username: 3-20 chars, alphanumeric + underscore + hyphen
	if len(creds.Username) < 3 || len(creds.Username) > 20 {
		return fmt.Errorf("username must be 3-20 characters")
	}
	if !usernameRegex.MatchString(creds.Username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}

	// Password: minimum 8 characters
	if len(creds.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	return nil
}

// dummyHash is compared against when the claimed username does not exist, so
// the missing-user path costs the same as a real password mismatch.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("secretsweb-dummy-password"), bcrypt.DefaultCost)
	return h
}()

// NewCredentialsValidator creates a CredentialsValidator over a UserStore.
//
// "no such user", "no local credential" and "wrong password" all collapse
// into the same generic error; callers must not distinguish them.
func NewCredentialsValidator(users UserStore) CredentialsValidator {
	return func(ctx context.Context, username, password string) (*User, error) {
		user, err := users.GetByUsername(ctx, username)
		if err != nil || !user.HasLocalCredential() {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, fmt.Errorf("invalid credentials")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, fmt.Errorf("invalid credentials")
		}

		return user, nil
	}
}

// CreateUserFunc creates a new user with the given credentials.
type CreateUserFunc func(ctx context.Context, creds *Credentials) (*User, error)

// NewCreateUserFunc creates a CreateUserFunc over a UserStore. Duplicate
// usernames surface as ErrUsernameTaken from the store's unique constraint
// rather than from a read-then-write pair.
func NewCreateUserFunc(users UserStore) CreateUserFunc {
	return func(ctx context.Context, creds *Credentials) (*User, error) {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		user := &User{
			ID:           NewUserID(),
			Username:     creds.Username,
			PasswordHash: string(passwordHash),
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
}
