package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/service"
)

// FriendHandler handles friend requests and friend lists.
type FriendHandler struct {
	friendService service.FriendshipService
}

// NewFriendHandler creates a new friend handler.
func NewFriendHandler(friendService service.FriendshipService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// FriendRequestRequest names the recipient of a friend request.
type FriendRequestRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,uuid"`
}

// FriendsResponse lists the caller's friends.
type FriendsResponse struct {
	Friends []model.PublicUser `json:"friends"`
}

// RequestsResponse lists pending incoming requests, oldest first.
type RequestsResponse struct {
	Requests []model.PublicUser `json:"requests"`
}

// SendRequest godoc
// @Summary Send a friend request
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body FriendRequestRequest true "Recipient"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /friends/requests [post]
func (h *FriendHandler) SendRequest(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req FriendRequestRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	to, err := uuid.Parse(req.ToUserID)
	if err != nil {
		return badRequest("invalid user ID", "INVALID_USER_ID")
	}

	if err := h.friendService.SendRequest(c.Request().Context(), userID, to); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, MessageResponse{Message: "friend request sent"})
}

// AcceptRequest godoc
// @Summary Accept a pending friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sender user ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /friends/requests/{id}/accept [post]
func (h *FriendHandler) AcceptRequest(c echo.Context) error {
	userID, from, err := h.requestParties(c)
	if err != nil {
		return err
	}

	if err := h.friendService.AcceptRequest(c.Request().Context(), userID, from); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "friend request accepted"})
}

// DeclineRequest godoc
// @Summary Decline a pending friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sender user ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /friends/requests/{id}/decline [post]
func (h *FriendHandler) DeclineRequest(c echo.Context) error {
	userID, from, err := h.requestParties(c)
	if err != nil {
		return err
	}

	if err := h.friendService.DeclineRequest(c.Request().Context(), userID, from); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "friend request declined"})
}

func (h *FriendHandler) requestParties(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	userID, err := currentUser(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	from, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, badRequest("invalid user ID", "INVALID_USER_ID")
	}
	return userID, from, nil
}

// ListFriends godoc
// @Summary List friends
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {object} FriendsResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /friends [get]
func (h *FriendHandler) ListFriends(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	friends, err := h.friendService.ListFriends(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, FriendsResponse{Friends: friends})
}

// ListRequests godoc
// @Summary List pending friend requests
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RequestsResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /friends/requests [get]
func (h *FriendHandler) ListRequests(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	requests, err := h.friendService.ListRequests(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, RequestsResponse{Requests: requests})
}
