package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgrizzle97/socialMedia/internal/auth"
	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
	"github.com/bgrizzle97/socialMedia/internal/logging"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/repository"
)

// DefaultResetTokenTTL is how long an issued reset token stays valid.
const DefaultResetTokenTTL = time.Hour

// maxNameAttempts bounds username derivation for external sign-ups.
const maxNameAttempts = 5

// ProfileChanges lists optional profile edits. Nil fields are left alone.
type ProfileChanges struct {
	Name       *string
	Password   *string
	ProfilePic *string
}

// PasswordHasher hashes and checks passwords. *auth.PasswordHasher is the
// production implementation.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// CredentialStore owns user identity records: uniqueness of name and email,
// password hashing and reset tokens.
type CredentialStore struct {
	users    repository.UserRepository
	hasher   PasswordHasher
	resetTTL time.Duration
	now      func() time.Time
	log      logging.Logger
	dummy    string
}

// NewCredentialStore creates a store. A non-positive resetTTL falls back to
// DefaultResetTokenTTL.
func NewCredentialStore(users repository.UserRepository, hasher PasswordHasher, resetTTL time.Duration, log logging.Logger) *CredentialStore {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	if log == nil {
		log = logging.Nop()
	}
	dummy, _ := hasher.Hash("placeholder-password")
	return &CredentialStore{
		users:    users,
		hasher:   hasher,
		resetTTL: resetTTL,
		now:      time.Now,
		log:      log,
		dummy:    dummy,
	}
}

// WithClock returns a copy of the store reading time from now.
func (s *CredentialStore) WithClock(now func() time.Time) *CredentialStore {
	cp := *s
	cp.now = now
	return &cp
}

// Create registers a password account.
func (s *CredentialStore) Create(ctx context.Context, name, email, password string) (*model.User, error) {
	if len(password) < auth.MinPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	if err := s.ensureAvailable(ctx, name, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.insert(ctx, s.users, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CredentialStore) ensureAvailable(ctx context.Context, name, email string) error {
	if _, exists, err := s.FindByEmail(ctx, email); err != nil {
		return err
	} else if exists {
		return apperrors.ErrDuplicateEmail
	}
	if _, exists, err := s.FindByName(ctx, name); err != nil {
		return err
	} else if exists {
		return apperrors.ErrDuplicateName
	}
	return nil
}

// insert creates user, resolving a lost uniqueness race to the field that
// collided.
func (s *CredentialStore) insert(ctx context.Context, users repository.UserRepository, user *model.User) error {
	err := users.Create(ctx, user)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Storage(err)
	}
	if _, lookupErr := users.FindByEmail(ctx, user.Email); lookupErr == nil {
		return apperrors.ErrDuplicateEmail
	}
	return apperrors.ErrDuplicateName
}

// VerifyPassword reports whether password matches the stored hash.
func (s *CredentialStore) VerifyPassword(user *model.User, password string) bool {
	if user == nil {
		return false
	}
	return s.hasher.Verify(user.PasswordHash, password)
}

// DummyVerify burns the same bcrypt work as a real comparison so unknown
// emails are not distinguishable by latency.
func (s *CredentialStore) DummyVerify(password string) {
	s.hasher.Verify(s.dummy, password)
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*model.User, bool, error) {
	return found(s.users.FindByEmail(ctx, email))
}

func (s *CredentialStore) FindByID(ctx context.Context, id uuid.UUID) (*model.User, bool, error) {
	return found(s.users.FindByID(ctx, id))
}

func (s *CredentialStore) FindByName(ctx context.Context, name string) (*model.User, bool, error) {
	return found(s.users.FindByName(ctx, name))
}

func found(user *model.User, err error) (*model.User, bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Storage(err)
	}
	return user, true, nil
}

// FindByIDs returns the users for ids in the order given. Unknown ids are
// skipped.
func (s *CredentialStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	byID := make(map[uuid.UUID]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

// Search returns up to limit users whose name or email contains query.
func (s *CredentialStore) Search(ctx context.Context, query string, exclude []uuid.UUID, limit int) ([]model.User, error) {
	users, err := s.users.Search(ctx, query, exclude, limit)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return users, nil
}

// IssueResetToken stores a fresh reset token for email, replacing any
// previous one, and returns the plaintext token.
func (s *CredentialStore) IssueResetToken(ctx context.Context, email string) (string, time.Time, error) {
	user, ok, err := s.FindByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		return "", time.Time{}, apperrors.ErrUserNotFound
	}

	token, digest, err := auth.NewResetToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		return "", time.Time{}, apperrors.Storage(err)
	}
	return token, expiresAt, nil
}

// ConsumeResetToken sets a new password if token matches the unexpired
// token stored for email. A token succeeds at most once.
func (s *CredentialStore) ConsumeResetToken(ctx context.Context, email, token, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return apperrors.ErrWeakPassword
	}

	now := s.now()
	digest := auth.HashResetToken(token)

	// reject bad tokens before paying for bcrypt
	user, ok, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !ok || !resetTokenMatches(user, digest, now) {
		return s.rejectResetToken(ctx, email, now)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// the conditional update still decides, so a token succeeds at most once
	ok, err = s.users.ConsumeResetToken(ctx, email, digest, hash, now)
	if err != nil {
		return apperrors.Storage(err)
	}
	if !ok {
		return s.rejectResetToken(ctx, email, now)
	}
	return nil
}

func resetTokenMatches(user *model.User, digest string, now time.Time) bool {
	if user.ResetTokenHash == nil || user.ResetTokenExpiresAt == nil {
		return false
	}
	if user.ResetTokenExpiresAt.Before(now) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*user.ResetTokenHash), []byte(digest)) == 1
}

func (s *CredentialStore) rejectResetToken(ctx context.Context, email string, now time.Time) error {
	if err := s.users.ClearExpiredResetToken(ctx, email, now); err != nil {
		s.log.Warn(ctx, "clear expired reset token failed", "error", err)
	}
	return apperrors.ErrInvalidOrExpiredToken
}

// UpdateProfile applies changes to the user with id.
func (s *CredentialStore) UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges) (*model.User, error) {
	if changes.Password != nil && *changes.Password != "" && len(*changes.Password) < auth.MinPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	user, ok, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}

	var update repository.ProfileUpdate
	if changes.Name != nil {
		name := strings.TrimSpace(*changes.Name)
		if name != "" && name != user.Name {
			if _, taken, err := s.FindByName(ctx, name); err != nil {
				return nil, err
			} else if taken {
				return nil, apperrors.ErrDuplicateName
			}
			update.Name = &name
		}
	}

	if changes.Password != nil && *changes.Password != "" {
		hash, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
	}

	if changes.ProfilePic != nil {
		update.SetProfilePic = true
		if pic := strings.TrimSpace(*changes.ProfilePic); pic != "" {
			update.ProfilePic = &pic
		}
	}

	if update.Empty() {
		return user, nil
	}
	if err := s.users.UpdateProfile(ctx, id, update); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateName
		}
		return nil, apperrors.Storage(err)
	}

	updated, ok, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return updated, nil
}

// ResolveExternal maps an external identity to a local user: an existing
// link wins, then a user with the same email, otherwise a new passwordless
// account is created. Linking happens in one transaction.
func (s *CredentialStore) ResolveExternal(ctx context.Context, identity auth.ExternalIdentity) (*model.User, error) {
	var resolved *model.User
	err := s.users.WithTransaction(ctx, func(ctx context.Context, users repository.UserRepository) error {
		link, err := users.FindExternalIdentity(ctx, identity.Provider, identity.ExternalID)
		switch {
		case err == nil:
			user, ok, err := found(users.FindByID(ctx, link.UserID))
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.ErrUserNotFound
			}
			resolved = user
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.Storage(err)
		}

		user, ok, err := found(users.FindByEmail(ctx, identity.Email))
		if err != nil {
			return err
		}
		if !ok {
			user, err = s.createExternal(ctx, users, identity)
			if err != nil {
				return err
			}
		}

		if err := users.CreateExternalIdentity(ctx, &model.ExternalIdentity{
			Provider:   identity.Provider,
			ExternalID: identity.ExternalID,
			UserID:     user.ID,
			Email:      identity.Email,
		}); err != nil {
			return apperrors.Storage(err)
		}
		resolved = user
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return resolved, nil
}

func (s *CredentialStore) createExternal(ctx context.Context, users repository.UserRepository, identity auth.ExternalIdentity) (*model.User, error) {
	base := strings.TrimSpace(identity.Name)
	if base == "" {
		base, _, _ = strings.Cut(identity.Email, "@")
	}
	if base == "" {
		base = identity.Provider + "-user"
	}

	candidate := base
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		_, taken, err := found(users.FindByName(ctx, candidate))
		if err != nil {
			return nil, err
		}
		if !taken {
			user := &model.User{ID: uuid.New(), Name: candidate, Email: identity.Email}
			if err := s.insert(ctx, users, user); err != nil {
				return nil, err
			}
			return user, nil
		}
		suffix, err := randomSuffix()
		if err != nil {
			return nil, err
		}
		candidate = base + "-" + suffix
	}
	return nil, apperrors.ErrDuplicateName
}

func randomSuffix() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate name suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
