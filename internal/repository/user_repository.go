package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgrizzle97/socialMedia/internal/model"
)

// UserRepository defines user persistence operations. Lookups return
// gorm.ErrRecordNotFound when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByName(ctx context.Context, name string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	Search(ctx context.Context, query string, exclude []uuid.UUID, limit int) ([]model.User, error)

	SetResetToken(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, email, digest, passwordHash string, now time.Time) (bool, error)
	ClearExpiredResetToken(ctx context.Context, email string, now time.Time) error

	FindExternalIdentity(ctx context.Context, provider, externalID string) (*model.ExternalIdentity, error)
	CreateExternalIdentity(ctx context.Context, identity *model.ExternalIdentity) error

	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error
}

// ProfileUpdate names the profile columns to write. Nil fields are left
// untouched; ProfilePic is written only when SetProfilePic is true and a nil
// value clears it.
type ProfileUpdate struct {
	Name          *string
	PasswordHash  *string
	SetProfilePic bool
	ProfilePic    *string
}

// Empty reports whether the update writes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.PasswordHash == nil && !u.SetProfilePic
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateProfile writes only the columns named in update, so concurrent
// writes to other columns (reset tokens) are not overwritten.
func (r *userRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) error {
	if update.Empty() {
		return nil
	}
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.PasswordHash != nil {
		fields["password_hash"] = *update.PasswordHash
	}
	if update.SetProfilePic {
		var pic interface{}
		if update.ProfilePic != nil {
			pic = *update.ProfilePic
		}
		fields["profile_pic"] = pic
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByName(ctx context.Context, name string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Search matches query case-insensitively as a substring of name or email.
func (r *userRepository) Search(ctx context.Context, query string, exclude []uuid.UUID, limit int) ([]model.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	tx := r.db.WithContext(ctx).
		Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", pattern, pattern)
	if len(exclude) > 0 {
		tx = tx.Where("id NOT IN ?", exclude)
	}

	var users []model.User
	if err := tx.Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_token_hash":       digest,
			"reset_token_expires_at": expiresAt,
		}).Error
}

// ConsumeResetToken swaps the password and clears the token in one
// conditional UPDATE, so a token can succeed at most once.
func (r *userRepository) ConsumeResetToken(ctx context.Context, email, digest, passwordHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? AND reset_token_hash = ? AND reset_token_expires_at >= ?", email, digest, now).
		Updates(map[string]interface{}{
			"password_hash":          passwordHash,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) ClearExpiredResetToken(ctx context.Context, email string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? AND reset_token_expires_at < ?", email, now).
		Updates(map[string]interface{}{
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		}).Error
}

func (r *userRepository) FindExternalIdentity(ctx context.Context, provider, externalID string) (*model.ExternalIdentity, error) {
	var identity model.ExternalIdentity
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *userRepository) CreateExternalIdentity(ctx context.Context, identity *model.ExternalIdentity) error {
	return r.db.WithContext(ctx).Create(identity).Error
}

// WithTransaction executes a function within a database transaction.
func (r *userRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &userRepository{db: tx})
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
