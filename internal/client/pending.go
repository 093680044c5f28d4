package client

import (
	"sync"

	"github.com/google/uuid"

	"github.com/buddychat/buddychat-server/internal/proto"
)

// MessageState tags a message in the rendered sequence.
type MessageState int

const (
	// StatePending is an optimistic message awaiting server confirmation.
	StatePending MessageState = iota
	// StateConfirmed is a server-acknowledged message with a real ID.
	StateConfirmed
	// StateFailed is a send that timed out or was rejected; the caller
	// may retry it explicitly.
	StateFailed
)

// Entry is one message in a conversation window: either a confirmed
// server message or an optimistic pending one keyed by temp ID. The two
// never coexist for the same logical message; confirmation replaces the
// pending entry in place.
type Entry struct {
	State   MessageState
	TempID  string
	Message proto.MessagePayload
}

// Outbox creates pending entries for optimistic rendering and reconciles
// them against message:sent acknowledgments.
type Outbox struct {
	mu      sync.Mutex
	pending map[string]*Entry
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		pending: make(map[string]*Entry),
	}
}

// Stage creates a pending entry with a fresh temp ID for an outgoing
// message. The caller renders it immediately.
func (o *Outbox) Stage(fromUserID, toUserID int64, content string, ts int64) *Entry {
	e := &Entry{
		State:  StatePending,
		TempID: uuid.NewString(),
		Message: proto.MessagePayload{
			FromUserID: fromUserID,
			ToUserID:   toUserID,
			Content:    content,
			Timestamp:  ts,
		},
	}

	o.mu.Lock()
	o.pending[e.TempID] = e
	o.mu.Unlock()
	return e
}

// Confirm transitions a pending entry to confirmed, adopting the
// server's message. Returns the entry so the window can replace it in
// place, or nil if the temp ID is unknown.
func (o *Outbox) Confirm(tempID string, msg proto.MessagePayload) *Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.pending[tempID]
	if !ok {
		return nil
	}
	delete(o.pending, tempID)

	e.State = StateConfirmed
	e.Message = msg
	return e
}

// Fail marks a pending entry as failed, keeping it visible for retry.
func (o *Outbox) Fail(tempID string) *Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.pending[tempID]
	if !ok {
		return nil
	}
	delete(o.pending, tempID)

	e.State = StateFailed
	return e
}

// Retry re-stages a failed entry under a new temp ID.
func (o *Outbox) Retry(e *Entry) *Entry {
	if e.State != StateFailed {
		return e
	}

	e.State = StatePending
	e.TempID = uuid.NewString()

	o.mu.Lock()
	o.pending[e.TempID] = e
	o.mu.Unlock()
	return e
}

// PendingCount reports how many entries await confirmation.
func (o *Outbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
