package model

import (
	"time"

	"github.com/google/uuid"
)

// ExternalIdentity links a provider account to a local user.
type ExternalIdentity struct {
	Provider   string    `json:"provider" gorm:"size:32;primaryKey"`
	ExternalID string    `json:"external_id" gorm:"size:255;primaryKey"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	Email      string    `json:"email" gorm:"size:255"`
	CreatedAt  time.Time `json:"created_at"`
}
