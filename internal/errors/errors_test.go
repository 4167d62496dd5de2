package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("send request: %w", ErrRequestAlreadySent)

	assert.True(t, errors.Is(wrapped, ErrRequestAlreadySent))
	assert.False(t, errors.Is(wrapped, ErrAlreadyFriends))
}

func TestStorage_WrapsRawErrors(t *testing.T) {
	raw := errors.New("dial tcp: connection refused")
	err := Storage(raw)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, raw))
	assert.Equal(t, KindTransientStorage, KindOf(err))
	assert.Equal(t, ErrStorage.Message, err.Error())
}

func TestStorage_KeepsDomainErrors(t *testing.T) {
	assert.Same(t, ErrUserNotFound, Storage(ErrUserNotFound))
	assert.Nil(t, Storage(nil))
}

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD"},
		{"conflict", ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
		{"not found", ErrNoSuchRequest, http.StatusNotFound, "NO_SUCH_REQUEST"},
		{"bad credentials", ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"missing token", ErrMissingToken, http.StatusUnauthorized, "MISSING_TOKEN"},
		{"invalid token", ErrInvalidToken, http.StatusForbidden, "INVALID_TOKEN"},
		{"expired token", ErrExpiredToken, http.StatusForbidden, "EXPIRED_TOKEN"},
		{"storage", Storage(errors.New("boom")), http.StatusInternalServerError, "STORAGE_UNAVAILABLE"},
		{"notification", ErrNotificationFailed, http.StatusInternalServerError, "NOTIFICATION_FAILED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.code, httpErr.ToErrorResponse().Code)
		})
	}
}
