package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/store"
)

// OfflineQueue is the durable per-recipient backlog of undelivered
// messages. Writes go straight through to the store so a restart loses
// nothing. The queue is unbounded; past alertSize every enqueue logs a
// warning, but no message is ever dropped.
type OfflineQueue struct {
	store     store.OfflineStore
	log       *zerolog.Logger
	alertSize int64
}

// NewOfflineQueue constructs a queue over the given store.
func NewOfflineQueue(st store.OfflineStore, alertSize int64, logger *zerolog.Logger) *OfflineQueue {
	return &OfflineQueue{
		store:     st,
		log:       logger,
		alertSize: alertSize,
	}
}

// Enqueue appends a message to the recipient's backlog.
func (q *OfflineQueue) Enqueue(ctx context.Context, recipientID, messageID int64) error {
	if err := q.store.EnqueueOffline(ctx, recipientID, messageID); err != nil {
		return fmt.Errorf("enqueue offline: %w", err)
	}

	if q.alertSize > 0 {
		count, err := q.store.CountOffline(ctx, recipientID)
		if err == nil && count >= q.alertSize {
			q.log.Warn().
				Int64("recipient_id", recipientID).
				Int64("queue_size", count).
				Msg("offline queue above alert threshold")
		}
	}
	return nil
}

// Flush atomically drains the recipient's backlog in FIFO order. Called
// once per reconnection, after registration and before the connection is
// considered settled.
func (q *OfflineQueue) Flush(ctx context.Context, recipientID int64) ([]Message, error) {
	rows, err := q.store.FlushOffline(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("flush offline: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromStore(row))
	}
	return messages, nil
}

func messageFromStore(row *store.Message) Message {
	return Message{
		ID:          row.ID,
		FromUserID:  row.FromUserID,
		ToUserID:    row.ToUserID,
		Content:     row.Body,
		CreatedAt:   row.CreatedAt,
		IsRead:      row.IsRead,
		IsDelivered: row.IsDelivered,
	}
}
