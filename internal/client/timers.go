package client

import (
	"sync"
	"time"
)

// TypingExpiry is how long a received typing indicator stays visible
// without a refresh.
const TypingExpiry = 3 * time.Second

// Debouncer holds one pending timer per key; each new event resets the
// timer, so fn fires only after the key goes quiet for the interval.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timers   map[string]*time.Timer
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		timers:   make(map[string]*time.Timer),
	}
}

// Trigger schedules fn for the key, replacing any pending schedule.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending schedule for a key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// Stop cancels every pending schedule.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, t := range d.timers {
		t.Stop()
		delete(d.timers, k)
	}
}

// Throttler fires on the leading edge and then suppresses the key for a
// cooldown. Used for typing notifications and activity reports, where
// only the first event in a burst matters.
type Throttler struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
}

// NewThrottler creates a throttler with the given cooldown.
func NewThrottler(cooldown time.Duration) *Throttler {
	return &Throttler{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether the key is outside its cooldown, and if so
// starts a new one.
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.last[key] = now
	return true
}

// Reset clears the cooldown for a key.
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key)
}

// TypingIndicator tracks which peers are currently typing, expiring each
// indicator after TypingExpiry unless refreshed.
type TypingIndicator struct {
	mu      sync.Mutex
	expiry  time.Duration
	typing  map[int64]*time.Timer
	onClear func(userID int64)
}

// NewTypingIndicator creates an indicator tracker. onClear runs when a
// peer's indicator expires or is cleared; it may be nil.
func NewTypingIndicator(expiry time.Duration, onClear func(userID int64)) *TypingIndicator {
	if expiry <= 0 {
		expiry = TypingExpiry
	}
	return &TypingIndicator{
		expiry:  expiry,
		typing:  make(map[int64]*time.Timer),
		onClear: onClear,
	}
}

// Set records a typing state for a peer. true arms (or re-arms) the
// expiry; false clears immediately.
func (ti *TypingIndicator) Set(userID int64, isTyping bool) {
	ti.mu.Lock()
	if t, ok := ti.typing[userID]; ok {
		t.Stop()
		delete(ti.typing, userID)
	}
	if isTyping {
		ti.typing[userID] = time.AfterFunc(ti.expiry, func() {
			ti.mu.Lock()
			delete(ti.typing, userID)
			ti.mu.Unlock()
			if ti.onClear != nil {
				ti.onClear(userID)
			}
		})
		ti.mu.Unlock()
		return
	}
	ti.mu.Unlock()
	if ti.onClear != nil {
		ti.onClear(userID)
	}
}

// IsTyping reports whether a peer's indicator is live.
func (ti *TypingIndicator) IsTyping(userID int64) bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	_, ok := ti.typing[userID]
	return ok
}
