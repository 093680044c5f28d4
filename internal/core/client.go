package core

import (
	"sync"
	"time"
)

// Client is a connected user as seen by the core layer. One Client exists
// per live transport connection; the hub guarantees at most one per user.
type Client struct {
	UserID      int64
	Name        string
	ConnectedAt time.Time
	Commands    chan *Command
	Events      chan *Event

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(userID int64, name string) *Client {
	return &Client{
		UserID:      userID,
		Name:        name,
		ConnectedAt: time.Now(),
		Commands:    make(chan *Command, 8),
		Events:      make(chan *Event, 32),
		closed:      make(chan struct{}),
	}
}

// Close marks the client as terminated. Idempotent. The transport layer
// watches Closed to tear down the underlying connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Closed returns a channel that is closed when the client is terminated.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// send pushes an event without blocking. A full buffer counts as a
// transport failure and is reported to the caller.
func (c *Client) send(ev *Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
