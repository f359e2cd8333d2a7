package gorm

import (
	"time"

	sw "github.com/panyam/secretsweb"
)

// UserModel is the GORM model for users.
//
// Username and GoogleID are nullable so that users with only one auth
// method do not collide on an empty string; the unique indexes are what make
// the find-or-create upsert race free.
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Username     *string   `gorm:"uniqueIndex;size:64"`
	PasswordHash string    `gorm:"size:128"`
	GoogleID     *string   `gorm:"uniqueIndex;size:128"`
	Secret       string    `gorm:"default:''"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *sw.User {
	user := &sw.User{
		ID:           m.ID,
		PasswordHash: m.PasswordHash,
		Secret:       m.Secret,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Username != nil {
		user.Username = *m.Username
	}
	if m.GoogleID != nil {
		user.GoogleID = *m.GoogleID
	}
	return user
}

func UserToModel(u *sw.User) *UserModel {
	model := &UserModel{
		ID:           u.ID,
		PasswordHash: u.PasswordHash,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Username != "" {
		model.Username = &u.Username
	}
	if u.GoogleID != "" {
		model.GoogleID = &u.GoogleID
	}
	return model
}
