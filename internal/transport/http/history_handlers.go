package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/proto"
	"github.com/buddychat/buddychat-server/internal/store"
)

// HistoryHandlers provides HTTP handlers for conversation history.
type HistoryHandlers struct {
	store    store.Store
	pageSize int
	log      *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.Store, pageSize int, logger *zerolog.Logger) *HistoryHandlers {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &HistoryHandlers{
		store:    st,
		pageSize: pageSize,
		log:      logger,
	}
}

// HistoryResponse represents one page of conversation history. Messages
// are in ascending timestamp order; has_more reports whether an older
// page exists before the first message returned.
type HistoryResponse struct {
	Messages   []proto.MessagePayload `json:"messages"`
	TotalCount int64                  `json:"total_count"`
	HasMore    bool                   `json:"has_more"`
}

// GetConversation handles fetching one page of a conversation, newest
// page first. Pass before_id to page backwards through history.
// GET /api/conversations/:userID/messages?before_id=&limit=
func (h *HistoryHandlers) GetConversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	peerID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	limit := h.pageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	var beforeID int64
	if raw := c.Query("before_id"); raw != "" {
		beforeID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || beforeID <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
			return
		}
	}

	// Fetch one extra row so has_more does not need a second query.
	rows, err := h.store.ListConversation(c.Request.Context(), uid, peerID, limit+1, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	hasMore := false
	if len(rows) > limit {
		hasMore = true
		rows = rows[len(rows)-limit:]
	}

	total, err := h.store.CountConversation(c.Request.Context(), uid, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to count conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages := make([]proto.MessagePayload, 0, len(rows))
	for _, m := range rows {
		messages = append(messages, messageToPayload(m))
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Messages:   messages,
		TotalCount: total,
		HasMore:    hasMore,
	})
}

func messageToPayload(m *store.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:          m.ID,
		FromUserID:  m.FromUserID,
		ToUserID:    m.ToUserID,
		Content:     m.Body,
		Timestamp:   m.CreatedAt.Unix(),
		IsRead:      m.IsRead,
		IsDelivered: m.IsDelivered,
	}
}
