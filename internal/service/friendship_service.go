package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
	"github.com/bgrizzle97/socialMedia/internal/logging"
	"github.com/bgrizzle97/socialMedia/internal/metrics"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/repository"
)

// FriendshipService manages the symmetric friend relation and each user's
// queue of incoming requests.
type FriendshipService interface {
	SendRequest(ctx context.Context, from, to uuid.UUID) error
	AcceptRequest(ctx context.Context, userID, from uuid.UUID) error
	DeclineRequest(ctx context.Context, userID, from uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]model.PublicUser, error)
	ListRequests(ctx context.Context, userID uuid.UUID) ([]model.PublicUser, error)
}

type friendshipService struct {
	friends     repository.FriendshipRepository
	credentials *CredentialStore
	metrics     *metrics.Recorder
	log         logging.Logger
}

// NewFriendshipService creates a new friendship service.
func NewFriendshipService(friends repository.FriendshipRepository, credentials *CredentialStore, rec *metrics.Recorder, log logging.Logger) FriendshipService {
	if log == nil {
		log = logging.Nop()
	}
	return &friendshipService{
		friends:     friends,
		credentials: credentials,
		metrics:     rec,
		log:         log,
	}
}

// SendRequest queues a request from -> to. Both user rows are locked so
// concurrent sends between the same pair serialize.
func (s *friendshipService) SendRequest(ctx context.Context, from, to uuid.UUID) (err error) {
	defer func() { s.metrics.FriendshipEvent("send_request", err) }()

	if from == to {
		return apperrors.ErrSelfFriendRequest
	}

	err = s.friends.WithTransaction(ctx, func(ctx context.Context, tx repository.FriendshipRepository) error {
		existing, err := tx.LockUsers(ctx, from, to)
		if err != nil {
			return apperrors.Storage(err)
		}
		if !containsID(existing, to) || !containsID(existing, from) {
			return apperrors.ErrUserNotFound
		}

		friends, err := tx.AreFriends(ctx, from, to)
		if err != nil {
			return apperrors.Storage(err)
		}
		if friends {
			return apperrors.ErrAlreadyFriends
		}

		pending, err := tx.HasRequest(ctx, to, from)
		if err != nil {
			return apperrors.Storage(err)
		}
		if pending {
			return apperrors.ErrRequestAlreadySent
		}

		if err := tx.AddRequest(ctx, to, from); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrRequestAlreadySent
			}
			return apperrors.Storage(err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "send friend request", err, "from", from, "to", to)
		return apperrors.Storage(err)
	}
	s.log.Info(ctx, "friend request sent", "from", from, "to", to)
	return nil
}

// AcceptRequest turns a pending request from -> userID into a friendship and
// drops a reverse request if one is pending.
func (s *friendshipService) AcceptRequest(ctx context.Context, userID, from uuid.UUID) (err error) {
	defer func() { s.metrics.FriendshipEvent("accept_request", err) }()

	err = s.friends.WithTransaction(ctx, func(ctx context.Context, tx repository.FriendshipRepository) error {
		if _, err := tx.LockUsers(ctx, userID, from); err != nil {
			return apperrors.Storage(err)
		}

		deleted, err := tx.DeleteRequest(ctx, userID, from)
		if err != nil {
			return apperrors.Storage(err)
		}
		if !deleted {
			return apperrors.ErrNoSuchRequest
		}

		if err := tx.AddFriendship(ctx, userID, from); err != nil {
			return apperrors.Storage(err)
		}
		if _, err := tx.DeleteRequest(ctx, from, userID); err != nil {
			return apperrors.Storage(err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "accept friend request", err, "user_id", userID, "from", from)
		return apperrors.Storage(err)
	}
	s.log.Info(ctx, "friend request accepted", "user_id", userID, "from", from)
	return nil
}

func (s *friendshipService) DeclineRequest(ctx context.Context, userID, from uuid.UUID) (err error) {
	defer func() { s.metrics.FriendshipEvent("decline_request", err) }()

	deleted, err := s.friends.DeleteRequest(ctx, userID, from)
	if err != nil {
		s.logFailure(ctx, "decline friend request", err, "user_id", userID, "from", from)
		return apperrors.Storage(err)
	}
	if !deleted {
		return apperrors.ErrNoSuchRequest
	}
	return nil
}

func (s *friendshipService) ListFriends(ctx context.Context, userID uuid.UUID) ([]model.PublicUser, error) {
	ids, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return s.publicUsers(ctx, ids)
}

// ListRequests returns incoming request senders oldest first.
func (s *friendshipService) ListRequests(ctx context.Context, userID uuid.UUID) ([]model.PublicUser, error) {
	ids, err := s.friends.ListRequestSenderIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return s.publicUsers(ctx, ids)
}

func (s *friendshipService) publicUsers(ctx context.Context, ids []uuid.UUID) ([]model.PublicUser, error) {
	users, err := s.credentials.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toPublic(users), nil
}

// logFailure logs storage failures; domain rejections are expected traffic.
func (s *friendshipService) logFailure(ctx context.Context, op string, err error, args ...any) {
	if apperrors.KindOf(err) != "" && apperrors.KindOf(err) != apperrors.KindTransientStorage {
		return
	}
	s.log.Error(ctx, op+" failed", append(args, "error", err)...)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func toPublic(users []model.User) []model.PublicUser {
	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}
