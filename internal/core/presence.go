package core

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Status is a user's availability status.
type Status string

const (
	StatusOnline    Status = "online"
	StatusAway      Status = "away"
	StatusInvisible Status = "invisible"
	StatusOffline   Status = "offline"
)

// MaxAwayMessageLen is the validation limit for away messages.
const MaxAwayMessageLen = 200

// AutoAwayMessage is set when the idle detector transitions a user to away.
const AutoAwayMessage = "Idle - away from keyboard"

// PresenceRecord tracks one user's availability. One record per known
// user; it persists across disconnects as offline.
type PresenceRecord struct {
	UserID         int64
	Status         Status
	Explicit       Status // last explicit choice, restored on reconnect
	AwayMessage    string
	AutoAway       bool
	LastActivityAt time.Time
	LastSeenAt     time.Time
}

// Visible is the status watchers are allowed to see. Invisible users are
// reported as offline to everyone but themselves.
func (r *PresenceRecord) Visible() Status {
	if r.Status == StatusInvisible {
		return StatusOffline
	}
	return r.Status
}

// Transition describes a completed presence state change.
type Transition struct {
	UserID         int64
	From           Status
	To             Status
	VisibleChanged bool
	Visible        Status
	AwayMessage    string
	LastSeen       time.Time
}

// PresenceMachine holds the per-user presence state machine. Mutations
// run on the hub loop; the mutex allows read snapshots from HTTP handlers.
type PresenceMachine struct {
	mu      sync.RWMutex
	records map[int64]*PresenceRecord
}

// NewPresenceMachine constructs an empty presence tracker.
func NewPresenceMachine() *PresenceMachine {
	return &PresenceMachine{
		records: make(map[int64]*PresenceRecord),
	}
}

// Restore seeds a user's record from persisted state, used at first
// connect after a restart. Status starts offline; only an explicit
// invisible choice and last-seen survive restarts.
func (m *PresenceMachine) Restore(userID int64, explicit Status, lastSeen time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[userID]; ok {
		return
	}
	if explicit != StatusInvisible {
		explicit = StatusOnline
	}
	m.records[userID] = &PresenceRecord{
		UserID:     userID,
		Status:     StatusOffline,
		Explicit:   explicit,
		LastSeenAt: lastSeen,
	}
}

func (m *PresenceMachine) record(userID int64) *PresenceRecord {
	if r, ok := m.records[userID]; ok {
		return r
	}
	r := &PresenceRecord{
		UserID:   userID,
		Status:   StatusOffline,
		Explicit: StatusOnline,
	}
	m.records[userID] = r
	return r
}

// Connect transitions the user to online, or back to invisible if that
// was their last explicit choice.
func (m *PresenceMachine) Connect(userID int64, now time.Time) *Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(userID)
	from := r.Visible()

	r.LastActivityAt = now
	r.AutoAway = false
	if r.Explicit == StatusInvisible {
		r.Status = StatusInvisible
	} else {
		// A previous away choice does not outlive the connection.
		r.Status = StatusOnline
		r.Explicit = StatusOnline
		r.AwayMessage = ""
	}

	return &Transition{
		UserID:         userID,
		From:           from,
		To:             r.Status,
		VisibleChanged: r.Visible() != from,
		Visible:        r.Visible(),
		AwayMessage:    r.AwayMessage,
	}
}

// Disconnect transitions the user to offline and stamps last-seen.
func (m *PresenceMachine) Disconnect(userID int64, now time.Time) *Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(userID)
	from := r.Visible()

	r.Status = StatusOffline
	r.AutoAway = false
	r.LastSeenAt = now

	return &Transition{
		UserID:         userID,
		From:           from,
		To:             StatusOffline,
		VisibleChanged: from != StatusOffline,
		Visible:        StatusOffline,
		LastSeen:       now,
	}
}

// SetStatus applies an explicit status change. Away messages longer than
// MaxAwayMessageLen are rejected, not truncated.
func (m *PresenceMachine) SetStatus(userID int64, status Status, awayMessage string, now time.Time) (*Transition, error) {
	switch status {
	case StatusOnline, StatusAway, StatusInvisible:
	default:
		return nil, ErrInvalidStatus
	}
	if utf8.RuneCountInString(awayMessage) > MaxAwayMessageLen {
		return nil, ErrAwayMessageTooLong
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(userID)
	from := r.Visible()

	r.Explicit = status
	r.Status = status
	r.AutoAway = false
	r.LastActivityAt = now
	if status == StatusAway {
		r.AwayMessage = awayMessage
	} else {
		r.AwayMessage = ""
	}
	// Going invisible looks like going offline to watchers.
	if status == StatusInvisible {
		r.LastSeenAt = now
	}

	return &Transition{
		UserID:         userID,
		From:           from,
		To:             status,
		VisibleChanged: r.Visible() != from,
		Visible:        r.Visible(),
		AwayMessage:    r.AwayMessage,
		LastSeen:       r.LastSeenAt,
	}, nil
}

// Activity records a user activity signal. Only auto-away is cleared by
// activity; a manually set away status stays until changed explicitly.
func (m *PresenceMachine) Activity(userID int64, now time.Time) *Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(userID)
	r.LastActivityAt = now
	if !r.AutoAway {
		return nil
	}

	from := r.Visible()
	r.AutoAway = false
	r.Status = StatusOnline
	r.Explicit = StatusOnline
	r.AwayMessage = ""

	return &Transition{
		UserID:         userID,
		From:           from,
		To:             StatusOnline,
		VisibleChanged: from != StatusOnline,
		Visible:        StatusOnline,
	}
}

// CheckIdle transitions online users with no activity for idleTimeout to
// auto-away and returns the resulting transitions.
func (m *PresenceMachine) CheckIdle(now time.Time, idleTimeout time.Duration) []*Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	var transitions []*Transition
	for _, r := range m.records {
		if r.Status != StatusOnline {
			continue
		}
		if now.Sub(r.LastActivityAt) < idleTimeout {
			continue
		}
		from := r.Visible()
		r.Status = StatusAway
		r.AutoAway = true
		r.AwayMessage = AutoAwayMessage
		transitions = append(transitions, &Transition{
			UserID:         r.UserID,
			From:           from,
			To:             StatusAway,
			VisibleChanged: true,
			Visible:        StatusAway,
			AwayMessage:    r.AwayMessage,
		})
	}
	return transitions
}

// Get returns a copy of the user's presence record, or nil if unknown.
func (m *PresenceMachine) Get(userID int64) *PresenceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[userID]
	if !ok {
		return nil
	}
	copied := *r
	return &copied
}
