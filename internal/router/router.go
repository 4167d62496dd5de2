package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/bgrizzle97/socialMedia/internal/auth"
	"github.com/bgrizzle97/socialMedia/internal/handler"
	"github.com/bgrizzle97/socialMedia/internal/metrics"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Friend *handler.FriendHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, tokens *auth.JWTService, rec *metrics.Recorder, h Handlers) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(rec.Middleware())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(rec.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/request-reset", h.Auth.RequestReset)
	api.POST("/auth/reset-password", h.Auth.ResetPassword)
	api.POST("/auth/oauth/:provider", h.Auth.OAuthLogin)

	// Secured routes (require a bearer token). The middleware is attached
	// per route so unknown paths still get 404/405.
	secured := auth.Middleware(tokens)

	api.GET("/auth/me", h.User.Me, secured)
	api.GET("/auth/profile-pic", h.User.ProfilePic, secured)
	api.POST("/auth/profile", h.User.UpdateProfile, secured)
	api.POST("/auth/profile/avatar-upload", h.User.AvatarUploadURL, secured)
	api.GET("/users/search", h.User.SearchUsers, secured)

	api.GET("/friends", h.Friend.ListFriends, secured)
	api.GET("/friends/requests", h.Friend.ListRequests, secured)
	api.POST("/friends/requests", h.Friend.SendRequest, secured)
	api.POST("/friends/requests/:id/accept", h.Friend.AcceptRequest, secured)
	api.POST("/friends/requests/:id/decline", h.Friend.DeclineRequest, secured)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
