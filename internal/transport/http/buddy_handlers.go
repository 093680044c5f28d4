package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/service/buddies"
	"github.com/buddychat/buddychat-server/internal/store"
)

// BuddyHandlers provides HTTP handlers for buddy list endpoints.
type BuddyHandlers struct {
	service *buddies.Service
	store   store.Store
	hub     *core.Hub
	log     *zerolog.Logger
}

// NewBuddyHandlers creates a new buddy handlers instance.
func NewBuddyHandlers(svc *buddies.Service, st store.Store, hub *core.Hub, logger *zerolog.Logger) *BuddyHandlers {
	return &BuddyHandlers{
		service: svc,
		store:   st,
		hub:     hub,
		log:     logger,
	}
}

// AddBuddyRequest represents the request body for adding a buddy.
type AddBuddyRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Nick      string `json:"nick"`
	GroupName string `json:"group_name"`
}

// UpdateBuddyRequest represents the request body for editing a buddy.
type UpdateBuddyRequest struct {
	Nick      string `json:"nick"`
	GroupName string `json:"group_name"`
}

// BuddyResponse represents a buddy in API responses, including the
// buddy's visible presence so the client can render the list directly.
type BuddyResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	ScreenName  string `json:"screen_name,omitempty"`
	Nick        string `json:"nick"`
	GroupName   string `json:"group_name,omitempty"`
	Status      string `json:"status"`
	AwayMessage string `json:"away_message,omitempty"`
	LastSeen    int64  `json:"last_seen,omitempty"`
	AddedAt     string `json:"added_at"`
}

func (h *BuddyHandlers) buddyToResponse(c *gin.Context, b *store.Buddy) BuddyResponse {
	resp := BuddyResponse{
		ID:        b.ID,
		UserID:    b.BuddyID,
		Nick:      b.Nick,
		GroupName: b.GroupName,
		Status:    string(core.StatusOffline),
		AddedAt:   b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	if user, err := h.store.GetUserByID(c.Request.Context(), b.BuddyID); err == nil {
		resp.ScreenName = user.ScreenName
	}

	if r := h.hub.Presence().Get(b.BuddyID); r != nil {
		resp.Status = string(r.Visible())
		if r.Visible() == core.StatusAway {
			resp.AwayMessage = r.AwayMessage
		}
		if !r.LastSeenAt.IsZero() {
			resp.LastSeen = r.LastSeenAt.Unix()
		}
	}

	return resp
}

// List handles listing the buddy list with live presence.
// GET /api/buddies
func (h *BuddyHandlers) List(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	rows, err := h.service.List(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("owner_id", uid).Msg("failed to list buddies")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]BuddyResponse, 0, len(rows))
	for _, b := range rows {
		response = append(response, h.buddyToResponse(c, b))
	}
	c.JSON(http.StatusOK, response)
}

// Add handles adding a buddy to the list.
// POST /api/buddies
func (h *BuddyHandlers) Add(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req AddBuddyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add buddy request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	row, err := h.service.Add(c.Request.Context(), uid, req.UserID, req.Nick, req.GroupName)
	if err != nil {
		switch {
		case errors.Is(err, buddies.ErrCannotAddSelf):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot add yourself as a buddy"})
		case errors.Is(err, buddies.ErrAlreadyBuddy):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "buddy already on list"})
		case errors.Is(err, buddies.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("owner_id", uid).Int64("buddy_id", req.UserID).Msg("failed to add buddy")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("owner_id", uid).Int64("buddy_id", req.UserID).Msg("buddy added")
	c.JSON(http.StatusCreated, h.buddyToResponse(c, row))
}

// Update handles renaming or regrouping a buddy.
// PATCH /api/buddies/:id
func (h *BuddyHandlers) Update(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	buddyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid buddy id"})
		return
	}

	var req UpdateBuddyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update buddy request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.Update(c.Request.Context(), uid, buddyID, req.Nick, req.GroupName); err != nil {
		if errors.Is(err, buddies.ErrBuddyNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "buddy not found"})
			return
		}
		h.log.Error().Err(err).Int64("owner_id", uid).Int64("buddy_id", buddyID).Msg("failed to update buddy")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Remove handles deleting a buddy. Idempotent: removing an absent buddy
// still returns success.
// DELETE /api/buddies/:id
func (h *BuddyHandlers) Remove(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	buddyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid buddy id"})
		return
	}

	if err := h.service.Remove(c.Request.Context(), uid, buddyID); err != nil {
		h.log.Error().Err(err).Int64("owner_id", uid).Int64("buddy_id", buddyID).Msg("failed to remove buddy")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
