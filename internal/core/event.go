package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventBuddyOnline notifies watchers that a buddy came online.
	EventBuddyOnline EventKind = iota
	// EventBuddyOffline notifies watchers that a buddy went offline.
	EventBuddyOffline
	// EventBuddyStatusChange notifies watchers about a status change.
	EventBuddyStatusChange
	// EventMessageReceive delivers an incoming message to the recipient.
	EventMessageReceive
	// EventMessageSent acknowledges a sent message back to the sender.
	EventMessageSent
	// EventDeliveryStatus reports delivery outcome to the sender.
	EventDeliveryStatus
	// EventOfflineDelivered delivers the queued backlog in one batch.
	EventOfflineDelivered
	// EventTyping forwards a typing indicator.
	EventTyping
	// EventMessagesRead notifies the sender that their messages were read.
	EventMessagesRead
	// EventServerBye tells the client the server is closing the connection.
	EventServerBye
	// EventError notifies the client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind            EventKind
	UserID          int64
	Status          Status
	AwayMessage     string
	LastSeen        time.Time
	Message         Message
	Messages        []Message // for EventOfflineDelivered
	TempID          string    // for EventMessageSent
	Delivered       bool
	RecipientOnline bool
	IsOffline       bool // for EventMessageReceive
	IsTyping        bool
	Reason          string // for EventServerBye
	Error           *CoreError
}
