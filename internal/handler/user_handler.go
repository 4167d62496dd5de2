package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bgrizzle97/socialMedia/internal/errors"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/service"
	"github.com/bgrizzle97/socialMedia/internal/storage"
)

// UserHandler serves the caller's profile and user search.
type UserHandler struct {
	authService   service.AuthService
	searchService service.SearchService
	avatars       storage.AvatarStore
}

// NewUserHandler creates a handler layer. avatars may be nil when uploads
// are not configured.
func NewUserHandler(authService service.AuthService, searchService service.SearchService, avatars storage.AvatarStore) *UserHandler {
	return &UserHandler{authService: authService, searchService: searchService, avatars: avatars}
}

// ProfileRequest represents a profile update. Omitted fields are unchanged.
type ProfileRequest struct {
	Username   *string `json:"username"`
	Password   *string `json:"password"`
	ProfilePic *string `json:"profile_pic" validate:"omitempty,url"`
}

// AvatarUploadRequest asks for a presigned avatar upload.
type AvatarUploadRequest struct {
	ContentType string `json:"content_type" validate:"required"`
}

// ProfilePicResponse carries the caller's avatar URL, null when unset.
type ProfilePicResponse struct {
	ProfilePic *string `json:"profile_pic"`
}

// UsersResponse wraps a list of users.
type UsersResponse struct {
	Users []model.PublicUser `json:"users"`
}

// Me godoc
// @Summary Get the signed-in user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.PublicUser
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.authService.GetCurrentUser(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ProfilePic godoc
// @Summary Get the signed-in user's avatar URL
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfilePicResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/profile-pic [get]
func (h *UserHandler) ProfilePic(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.authService.GetCurrentUser(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, ProfilePicResponse{ProfilePic: user.ProfilePic})
}

// UpdateProfile godoc
// @Summary Update the signed-in user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfileRequest true "Profile changes"
// @Success 200 {object} model.PublicUser
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /auth/profile [post]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(c.Request().Context(), userID, service.ProfileInput{
		Username:   req.Username,
		Password:   req.Password,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, user)
}

// AvatarUploadURL godoc
// @Summary Get a presigned URL for uploading an avatar
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AvatarUploadRequest true "Image content type"
// @Success 200 {object} storage.AvatarUpload
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/profile/avatar-upload [post]
func (h *UserHandler) AvatarUploadURL(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	if h.avatars == nil {
		return fail(errors.ErrUploadsDisabled)
	}

	var req AvatarUploadRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	upload, err := h.avatars.PresignUpload(c.Request().Context(), userID, req.ContentType)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, upload)
}

// SearchUsers godoc
// @Summary Search users to befriend
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name or email fragment"
// @Success 200 {object} UsersResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/search [get]
func (h *UserHandler) SearchUsers(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	users, err := h.searchService.Search(c.Request().Context(), userID, c.QueryParam("q"))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UsersResponse{Users: users})
}
