package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a domain error for propagation and HTTP mapping.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindConflict         Kind = "conflict"
	KindNotFound         Kind = "not_found"
	KindAuth             Kind = "auth"
	KindTransientStorage Kind = "transient_storage"
)

// Error is a typed domain error returned by services.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying storage failure, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// Validation errors: rejected before any storage access.
	ErrAllFieldsRequired     = newError(KindValidation, "ALL_FIELDS_REQUIRED", "all fields are required")
	ErrEmailPasswordRequired = newError(KindValidation, "EMAIL_PASSWORD_REQUIRED", "email and password are required")
	ErrEmailRequired         = newError(KindValidation, "EMAIL_REQUIRED", "email is required")
	ErrPasswordMismatch      = newError(KindValidation, "PASSWORD_MISMATCH", "passwords do not match")
	ErrWeakPassword          = newError(KindValidation, "WEAK_PASSWORD", "password must be at least 6 characters long")
	ErrSelfFriendRequest     = newError(KindValidation, "SELF_FRIEND_REQUEST", "cannot send a friend request to yourself")
	ErrInvalidOrExpiredToken = newError(KindValidation, "INVALID_OR_EXPIRED_RESET_TOKEN", "invalid or expired token")
	ErrUnknownProvider       = newError(KindValidation, "UNKNOWN_PROVIDER", "unknown identity provider")
	ErrUploadsDisabled       = newError(KindValidation, "UPLOADS_DISABLED", "avatar uploads are not configured")
	ErrUnsupportedImageType  = newError(KindValidation, "UNSUPPORTED_IMAGE_TYPE", "only png, jpeg, gif and webp images are accepted")

	// Conflict errors.
	ErrDuplicateEmail     = newError(KindConflict, "DUPLICATE_EMAIL", "user with this email already exists")
	ErrDuplicateName      = newError(KindConflict, "DUPLICATE_NAME", "username is already taken")
	ErrAlreadyFriends     = newError(KindConflict, "ALREADY_FRIENDS", "users are already friends")
	ErrRequestAlreadySent = newError(KindConflict, "REQUEST_ALREADY_SENT", "friend request already sent")

	// Not found errors.
	ErrUserNotFound  = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrNoSuchRequest = newError(KindNotFound, "NO_SUCH_REQUEST", "friend request not found")

	// Auth errors. Login failures of any cause collapse into ErrInvalidCredentials.
	ErrInvalidCredentials = newError(KindAuth, "INVALID_CREDENTIALS", "invalid email or password")
	ErrMissingToken       = newError(KindAuth, "MISSING_TOKEN", "no token provided")
	ErrInvalidToken       = newError(KindAuth, "INVALID_TOKEN", "invalid token")
	ErrExpiredToken       = newError(KindAuth, "EXPIRED_TOKEN", "token expired")
	ErrExternalAuthFailed = newError(KindAuth, "EXTERNAL_AUTH_FAILED", "external authentication failed")

	// ErrStorage is the sentinel for wrapped storage failures.
	ErrStorage            = newError(KindTransientStorage, "STORAGE_UNAVAILABLE", "storage unavailable")
	ErrNotificationFailed = newError(KindTransientStorage, "NOTIFICATION_FAILED", "failed to deliver reset link")
)

// Storage wraps a raw storage failure so callers only ever see a typed error.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{
		Kind:    KindTransientStorage,
		Code:    ErrStorage.Code,
		Message: ErrStorage.Message,
		cause:   err,
	}
}

// KindOf returns the kind of err, or "" when it is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var de *Error
	if !errors.As(err, &de) {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}

	switch de.Kind {
	case KindValidation:
		return NewHTTPError(http.StatusBadRequest, de.Message, de.Code)
	case KindConflict:
		return NewHTTPError(http.StatusConflict, de.Message, de.Code)
	case KindNotFound:
		return NewHTTPError(http.StatusNotFound, de.Message, de.Code)
	case KindAuth:
		if de.Code == ErrInvalidToken.Code || de.Code == ErrExpiredToken.Code {
			return NewHTTPError(http.StatusForbidden, de.Message, de.Code)
		}
		return NewHTTPError(http.StatusUnauthorized, de.Message, de.Code)
	default:
		if de.Code == ErrNotificationFailed.Code {
			return NewHTTPError(http.StatusInternalServerError, de.Message, de.Code)
		}
		return NewHTTPError(http.StatusInternalServerError, ErrStorage.Message, ErrStorage.Code)
	}
}
