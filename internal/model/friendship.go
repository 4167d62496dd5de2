package model

import (
	"time"

	"github.com/google/uuid"
)

// Friendship is one direction of a symmetric friendship. A pair of users is
// friends only when both (a,b) and (b,a) rows exist.
type Friendship struct {
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);primaryKey"`
	FriendID  uuid.UUID `json:"friend_id" gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequest is membership of SenderID in RecipientID's request queue.
// The auto-increment ID gives queue order.
type FriendRequest struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:char(36);not null;uniqueIndex:idx_friend_request_pair,priority:1"`
	SenderID    uuid.UUID `json:"sender_id" gorm:"type:char(36);not null;uniqueIndex:idx_friend_request_pair,priority:2;index"`
	CreatedAt   time.Time `json:"created_at"`
}
