package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate row")

// User represents a registered account.
type User struct {
	ID           int64
	ScreenName   string
	PasswordHash string
	CreatedAt    time.Time
}

// Buddy represents a directed relationship: the owner's list contains
// the buddy. Nick and group name are display metadata only.
type Buddy struct {
	ID        int64
	OwnerID   int64
	BuddyID   int64
	Nick      string
	GroupName string
	CreatedAt time.Time
}

// Message represents a persisted direct message.
type Message struct {
	ID          int64
	FromUserID  int64
	ToUserID    int64
	Body        string
	CreatedAt   time.Time
	IsRead      bool
	IsDelivered bool
}

// Presence persists the durable part of a user's presence: the last
// explicit status choice, away message and last-seen stamp. Live status
// resets to offline on restart.
type Presence struct {
	UserID      int64
	Status      string
	AwayMessage string
	LastSeenAt  time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, screenName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByScreenName retrieves a user by screen name.
	GetUserByScreenName(ctx context.Context, screenName string) (*User, error)

	// SearchUsers searches for users by screen name substring.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// BuddyStore handles buddy list persistence.
type BuddyStore interface {
	// CreateBuddy inserts a directed edge owner -> buddy.
	CreateBuddy(ctx context.Context, ownerID, buddyID int64, nick, groupName string) (*Buddy, error)

	// GetBuddy retrieves a single edge.
	GetBuddy(ctx context.Context, ownerID, buddyID int64) (*Buddy, error)

	// UpdateBuddy replaces nick and group name on an existing edge.
	UpdateBuddy(ctx context.Context, ownerID, buddyID int64, nick, groupName string) error

	// DeleteBuddy removes an edge. Deleting an absent edge is not an error;
	// the bool reports whether a row was removed.
	DeleteBuddy(ctx context.Context, ownerID, buddyID int64) (bool, error)

	// ListBuddies lists the owner's edges.
	ListBuddies(ctx context.Context, ownerID int64) ([]*Buddy, error)

	// ListAllBuddies returns every edge, used to warm the in-memory index.
	ListAllBuddies(ctx context.Context) ([]*Buddy, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and assigns its ID and timestamp.
	SaveMessage(ctx context.Context, msg *Message) error

	// MarkDelivered flips the delivered flag on one message.
	MarkDelivered(ctx context.Context, id int64) error

	// MarkConversationRead flips the read flag on every message from
	// fromID to readerID and returns the number of rows affected.
	MarkConversationRead(ctx context.Context, readerID, fromID int64) (int64, error)

	// ListConversation retrieves messages between two users, newest page
	// first in ascending order. beforeID of 0 means the most recent page.
	ListConversation(ctx context.Context, userA, userB int64, limit int, beforeID int64) ([]*Message, error)

	// CountConversation returns the total message count between two users.
	CountConversation(ctx context.Context, userA, userB int64) (int64, error)
}

// OfflineStore handles the durable offline message queue.
type OfflineStore interface {
	// EnqueueOffline appends a message to the recipient's backlog.
	EnqueueOffline(ctx context.Context, recipientID, messageID int64) error

	// FlushOffline atomically drains the recipient's backlog in FIFO
	// order, marking the messages delivered.
	FlushOffline(ctx context.Context, recipientID int64) ([]*Message, error)

	// CountOffline returns the recipient's backlog size.
	CountOffline(ctx context.Context, recipientID int64) (int64, error)
}

// PresenceStore handles durable presence state.
type PresenceStore interface {
	// UpsertPresence writes the user's durable presence row.
	UpsertPresence(ctx context.Context, p *Presence) error

	// GetPresence retrieves a user's durable presence row.
	GetPresence(ctx context.Context, userID int64) (*Presence, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	BuddyStore
	MessageStore
	OfflineStore
	PresenceStore

	// Close closes the underlying database connection.
	Close() error
}
