// Package stores provides a filesystem-backed UserStore, suitable for
// development and tests. For production use the gorm or gae subpackages.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sw "github.com/panyam/secretsweb"
)

// FSUserStore stores users as JSON files.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/
//	│   └── {userId}.json
//	├── usernames/
//	│   └── {username}.json      # {"username": ..., "user_id": ...}
//	└── googleids/
//	    └── {googleId}.json      # {"google_id": ..., "user_id": ...}
//
// The username and googleid files are uniqueness indexes pointing back at
// the owning user. A process-wide mutex serializes writers so the
// lookup-or-insert paths stay atomic; cross-process safety comes from the
// atomic temp-file-then-rename writes only, which is fine for the dev and
// test usage this store is meant for.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

type indexRecord struct {
	Username string `json:"username,omitempty"`
	GoogleID string `json:"google_id,omitempty"`
	UserID   string `json:"user_id"`
}

// NewFSUserStore creates a new filesystem-backed UserStore
func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) userPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) usernamePath(username string) string {
	return filepath.Join(s.StoragePath, "usernames", strings.ToLower(username)+".json")
}

func (s *FSUserStore) googleIDPath(googleID string) string {
	return filepath.Join(s.StoragePath, "googleids", googleID+".json")
}

func (s *FSUserStore) readUser(path string) (*sw.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sw.ErrUserNotFound
		}
		return nil, err
	}
	var user sw.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *FSUserStore) readIndex(path string) (*indexRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Not found
		}
		return nil, err
	}
	var rec indexRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FSUserStore) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes through a temp file in the same directory followed
// by a rename, so concurrent readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FSUserStore) writeUser(user *sw.User) error {
	user.UpdatedAt = time.Now()
	return s.writeJSON(s.userPath(user.ID), user)
}

func (s *FSUserStore) Create(ctx context.Context, user *sw.User) error {
	if !user.HasLocalCredential() && !user.HasGoogleCredential() {
		return sw.ErrNoAuthMethod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username != "" {
		existing, err := s.readIndex(s.usernamePath(user.Username))
		if err != nil {
			return err
		}
		if existing != nil {
			return sw.ErrUsernameTaken
		}
	}
	if user.GoogleID != "" {
		existing, err := s.readIndex(s.googleIDPath(user.GoogleID))
		if err != nil {
			return err
		}
		if existing != nil {
			return sw.ErrGoogleIDTaken
		}
	}

	user.CreatedAt = time.Now()
	if err := s.writeUser(user); err != nil {
		return err
	}
	if user.Username != "" {
		rec := &indexRecord{Username: user.Username, UserID: user.ID}
		if err := s.writeJSON(s.usernamePath(user.Username), rec); err != nil {
			return err
		}
	}
	if user.GoogleID != "" {
		rec := &indexRecord{GoogleID: user.GoogleID, UserID: user.ID}
		if err := s.writeJSON(s.googleIDPath(user.GoogleID), rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *FSUserStore) GetByID(ctx context.Context, id string) (*sw.User, error) {
	return s.readUser(s.userPath(id))
}

func (s *FSUserStore) GetByUsername(ctx context.Context, username string) (*sw.User, error) {
	rec, err := s.readIndex(s.usernamePath(username))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, sw.ErrUserNotFound
	}
	return s.readUser(s.userPath(rec.UserID))
}

func (s *FSUserStore) FindOrCreateByGoogleID(ctx context.Context, googleID string) (*sw.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readIndex(s.googleIDPath(googleID))
	if err != nil {
		return nil, false, err
	}
	if rec != nil {
		user, err := s.readUser(s.userPath(rec.UserID))
		return user, false, err
	}

	user := &sw.User{
		ID:        sw.NewUserID(),
		GoogleID:  googleID,
		CreatedAt: time.Now(),
	}
	if err := s.writeUser(user); err != nil {
		return nil, false, err
	}
	rec = &indexRecord{GoogleID: googleID, UserID: user.ID}
	if err := s.writeJSON(s.googleIDPath(googleID), rec); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *FSUserStore) SetSecret(ctx context.Context, userID string, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(s.userPath(userID))
	if err != nil {
		return err
	}
	user.Secret = secret
	return s.writeUser(user)
}

func (s *FSUserStore) ListSecrets(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.StoragePath, "users"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var secrets []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		user, err := s.readUser(filepath.Join(s.StoragePath, "users", entry.Name()))
		if err != nil {
			return nil, err
		}
		if user.Secret != "" {
			secrets = append(secrets, user.Secret)
		}
	}
	return secrets, nil
}
