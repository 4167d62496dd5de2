package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bgrizzle97/socialMedia/internal/model"
)

// FriendshipRepository persists the friend relation and request queues.
type FriendshipRepository interface {
	// LockUsers takes row locks on the given users in id order and returns
	// the ids that exist.
	LockUsers(ctx context.Context, ids ...uuid.UUID) ([]uuid.UUID, error)
	AreFriends(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
	HasRequest(ctx context.Context, recipientID, senderID uuid.UUID) (bool, error)
	AddRequest(ctx context.Context, recipientID, senderID uuid.UUID) error
	DeleteRequest(ctx context.Context, recipientID, senderID uuid.UUID) (bool, error)
	AddFriendship(ctx context.Context, userID, otherID uuid.UUID) error
	ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListRequestSenderIDs(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error)

	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo FriendshipRepository) error) error
}

type friendshipRepository struct {
	db *gorm.DB
}

// NewFriendshipRepository creates a new friendship repository.
func NewFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &friendshipRepository{db: db}
}

func (r *friendshipRepository) LockUsers(ctx context.Context, ids ...uuid.UUID) ([]uuid.UUID, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	var found []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id").
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func (r *friendshipRepository) AreFriends(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, otherID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *friendshipRepository) HasRequest(ctx context.Context, recipientID, senderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("recipient_id = ? AND sender_id = ?", recipientID, senderID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *friendshipRepository) AddRequest(ctx context.Context, recipientID, senderID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&model.FriendRequest{
		RecipientID: recipientID,
		SenderID:    senderID,
	}).Error
}

func (r *friendshipRepository) DeleteRequest(ctx context.Context, recipientID, senderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("recipient_id = ? AND sender_id = ?", recipientID, senderID).
		Delete(&model.FriendRequest{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddFriendship writes both directions of the relation.
func (r *friendshipRepository) AddFriendship(ctx context.Context, userID, otherID uuid.UUID) error {
	rows := []model.Friendship{
		{UserID: userID, FriendID: otherID},
		{UserID: otherID, FriendID: userID},
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *friendshipRepository) ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ?", userID).
		Order("created_at").
		Pluck("friend_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *friendshipRepository) ListRequestSenderIDs(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("recipient_id = ?", recipientID).
		Order("id").
		Pluck("sender_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// WithTransaction executes a function within a database transaction.
func (r *friendshipRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo FriendshipRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &friendshipRepository{db: tx})
	})
}
