package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/repository"
)

// SearchResultLimit caps the number of users returned by one search.
const SearchResultLimit = 10

// SearchService finds users the requester could befriend.
type SearchService interface {
	Search(ctx context.Context, requester uuid.UUID, query string) ([]model.PublicUser, error)
}

type searchService struct {
	friends     repository.FriendshipRepository
	credentials *CredentialStore
}

// NewSearchService creates a new search service.
func NewSearchService(friends repository.FriendshipRepository, credentials *CredentialStore) SearchService {
	return &searchService{friends: friends, credentials: credentials}
}

// Search matches query against names and emails, leaving out the requester,
// their friends and users who already sent them a request. Requests the
// requester sent are not excluded.
func (s *searchService) Search(ctx context.Context, requester uuid.UUID, query string) ([]model.PublicUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.PublicUser{}, nil
	}

	friendIDs, err := s.friends.ListFriendIDs(ctx, requester)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	senderIDs, err := s.friends.ListRequestSenderIDs(ctx, requester)
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	exclude := make([]uuid.UUID, 0, 1+len(friendIDs)+len(senderIDs))
	exclude = append(exclude, requester)
	exclude = append(exclude, friendIDs...)
	exclude = append(exclude, senderIDs...)

	users, err := s.credentials.Search(ctx, query, exclude, SearchResultLimit)
	if err != nil {
		return nil, err
	}
	return toPublic(users), nil
}
