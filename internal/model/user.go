package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the identity record. Name and Email use a binary collation so
// uniqueness is case-sensitive as stored.
type User struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Name                string     `json:"username" gorm:"type:varchar(255) COLLATE utf8mb4_bin;not null;uniqueIndex"`
	Email               string     `json:"email" gorm:"type:varchar(255) COLLATE utf8mb4_bin;not null;uniqueIndex"`
	PasswordHash        string     `json:"-" gorm:"size:255"` // empty for external-only accounts
	ProfilePic          *string    `json:"profile_pic" gorm:"size:1024"`
	ResetTokenHash      *string    `json:"-" gorm:"size:64"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// PublicUser is the minimal profile projection exposed to other users.
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ProfilePic *string   `json:"profile_pic"`
}

// Public projects u onto its public fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}
