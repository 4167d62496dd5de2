package auth

import (
	"errors"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
)

// SubjectKey is the echo context key holding the verified user id.
const SubjectKey = "subject"

// Middleware authenticates bearer tokens. A missing or malformed
// Authorization header is rejected with 401; a token that fails
// verification is rejected with 403.
func Middleware(tokens *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  SubjectKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return tokens.Verify(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			switch {
			case errors.Is(err, apperrors.ErrExpiredToken):
				return reject(apperrors.ErrExpiredToken)
			case errors.Is(err, apperrors.ErrInvalidToken):
				return reject(apperrors.ErrInvalidToken)
			default:
				return reject(apperrors.ErrMissingToken)
			}
		},
	})
}

func reject(err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// Subject returns the user id stored by Middleware.
func Subject(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(SubjectKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
