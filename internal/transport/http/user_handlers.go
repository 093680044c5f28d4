package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/store"
)

// UserHandlers provides HTTP handlers for user directory operations.
type UserHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
}

// PresenceResponse is the visible presence of one user.
type PresenceResponse struct {
	UserID      int64  `json:"user_id"`
	Status      string `json:"status"`
	AwayMessage string `json:"away_message,omitempty"`
	LastSeen    int64  `json:"last_seen,omitempty"`
}

// SearchUsers handles searching the user directory.
// GET /api/users/search?q=query
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must be at least 3 characters"})
		return
	}

	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.store.SearchUsers(c.Request.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0)
	for _, u := range users {
		// don't show self
		if u.ID == uid {
			continue
		}
		response = append(response, UserResponse{ID: u.ID, ScreenName: u.ScreenName})
	}

	c.JSON(http.StatusOK, response)
}

// GetPresence returns the externally visible presence of one user.
// Invisible users are reported offline.
// GET /api/users/:id/presence
func (h *UserHandlers) GetPresence(c *gin.Context) {
	subjectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	if _, err := h.store.GetUserByID(c.Request.Context(), subjectID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}

	resp := PresenceResponse{UserID: subjectID, Status: string(core.StatusOffline)}

	if r := h.hub.Presence().Get(subjectID); r != nil {
		resp.Status = string(r.Visible())
		if r.Visible() == core.StatusAway {
			resp.AwayMessage = r.AwayMessage
		}
		if !r.LastSeenAt.IsZero() {
			resp.LastSeen = r.LastSeenAt.Unix()
		}
	} else if p, err := h.store.GetPresence(c.Request.Context(), subjectID); err == nil {
		// No live record since the last restart; last-seen survives.
		if !p.LastSeenAt.IsZero() {
			resp.LastSeen = p.LastSeenAt.Unix()
		}
	}

	c.JSON(http.StatusOK, resp)
}
