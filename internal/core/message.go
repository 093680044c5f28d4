package core

import "time"

// Message is the domain model for a direct message between two users.
// Immutable once created, except for the delivery and read flags.
type Message struct {
	ID          int64
	FromUserID  int64
	ToUserID    int64
	Content     string
	CreatedAt   time.Time
	IsRead      bool
	IsDelivered bool
}
