package client

import (
	"errors"
	"sync"
	"time"
)

// Ack errors. A timeout means the server never answered and the send may
// or may not have happened; a rejection means the server said no.
var (
	ErrAckTimeout  = errors.New("acknowledgment timed out")
	ErrAckRejected = errors.New("request rejected")
)

// DefaultAckTimeout bounds how long a send waits for its acknowledgment.
const DefaultAckTimeout = 5 * time.Second

// AckResult is the outcome of one acknowledged send.
type AckResult struct {
	ServerID int64
	Err      error
}

type pendingAck struct {
	ch    chan AckResult
	timer *time.Timer
}

// AckTracker matches server acknowledgments to in-flight sends by temp
// ID and enforces the acknowledgment timeout.
type AckTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	waiting map[string]*pendingAck
}

// NewAckTracker creates a tracker with the given timeout. Zero means
// DefaultAckTimeout.
func NewAckTracker(timeout time.Duration) *AckTracker {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &AckTracker{
		timeout: timeout,
		waiting: make(map[string]*pendingAck),
	}
}

// Track registers a temp ID and returns a channel that receives exactly
// one result: confirmation, rejection, or timeout.
func (t *AckTracker) Track(tempID string) <-chan AckResult {
	ch := make(chan AckResult, 1)

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.waiting[tempID]; ok {
		prev.timer.Stop()
		prev.ch <- AckResult{Err: ErrAckRejected}
	}

	p := &pendingAck{ch: ch}
	p.timer = time.AfterFunc(t.timeout, func() {
		t.finish(tempID, AckResult{Err: ErrAckTimeout})
	})
	t.waiting[tempID] = p
	return ch
}

// Confirm resolves a tracked send with its server-assigned ID.
func (t *AckTracker) Confirm(tempID string, serverID int64) bool {
	return t.finish(tempID, AckResult{ServerID: serverID})
}

// Reject resolves a tracked send with an explicit server rejection.
func (t *AckTracker) Reject(tempID string, err error) bool {
	if err == nil {
		err = ErrAckRejected
	}
	return t.finish(tempID, AckResult{Err: err})
}

// Pending reports how many sends are awaiting acknowledgment.
func (t *AckTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiting)
}

func (t *AckTracker) finish(tempID string, res AckResult) bool {
	t.mu.Lock()
	p, ok := t.waiting[tempID]
	if ok {
		delete(t.waiting, tempID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	p.timer.Stop()
	p.ch <- res
	return true
}
