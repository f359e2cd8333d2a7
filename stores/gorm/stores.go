// Package gorm implements the UserStore over a SQL database via GORM.
package gorm

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sw "github.com/panyam/secretsweb"
)

// AutoMigrate runs database migrations for all secretsweb tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements sw.UserStore using GORM. Uniqueness of usernames and
// Google IDs is enforced by the database, not by read-then-write checks.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// isDuplicateKey detects a unique constraint violation. GORM translates
// these to ErrDuplicatedKey when the dialector supports it; the string check
// covers drivers opened without error translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint")
}

func (s *UserStore) Create(ctx context.Context, user *sw.User) error {
	if !user.HasLocalCredential() && !user.HasGoogleCredential() {
		return sw.ErrNoAuthMethod
	}
	model := UserToModel(user)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			// The violated constraint names the column on every supported
			// driver, so the sentinel can name the right identifier.
			if strings.Contains(err.Error(), "google_id") {
				return sw.ErrGoogleIDTaken
			}
			return sw.ErrUsernameTaken
		}
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*sw.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sw.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*sw.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sw.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

// FindOrCreateByGoogleID is a single atomic upsert against the google_id
// unique index: concurrent callbacks with the same ID create exactly one row
// and everyone resolves to it.
func (s *UserStore) FindOrCreateByGoogleID(ctx context.Context, googleID string) (*sw.User, bool, error) {
	model := &UserModel{
		ID:       sw.NewUserID(),
		GoogleID: &googleID,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "google_id"}},
			DoNothing: true,
		}).
		Create(model)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected == 1
	if created {
		return model.ToUser(), true, nil
	}

	// Another request won the insert; read the winner.
	var existing UserModel
	if err := s.db.WithContext(ctx).First(&existing, "google_id = ?", googleID).Error; err != nil {
		return nil, false, err
	}
	return existing.ToUser(), false, nil
}

func (s *UserStore) SetSecret(ctx context.Context, userID string, secret string) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Update("secret", secret)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sw.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListSecrets(ctx context.Context) ([]string, error) {
	var secrets []string
	if err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("secret <> ''").
		Pluck("secret", &secrets).Error; err != nil {
		return nil, err
	}
	return secrets, nil
}
