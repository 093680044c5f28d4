package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/buddychat/buddychat-server/internal/proto"
)

// ErrLoadSuperseded reports that a newer page load for the same
// conversation started while this one was in flight; the late result
// was discarded.
var ErrLoadSuperseded = errors.New("page load superseded")

// DefaultBufferLimit caps buffered messages across all conversations.
const DefaultBufferLimit = 1000

// Page is one fetched slice of conversation history, ascending.
type Page struct {
	Messages []proto.MessagePayload
	HasMore  bool
}

// PageFetcher retrieves history pages from the server. beforeID of 0
// means the most recent page.
type PageFetcher interface {
	FetchPage(ctx context.Context, peerID, beforeID int64, limit int) (*Page, error)
}

// conversation is one peer's in-memory window: a timestamp-ascending
// entry sequence assembled from history pages and live pushes.
type conversation struct {
	peerID   int64
	entries  []*Entry
	ids      map[int64]struct{}
	hasMore  bool
	fetched  bool
	viewedAt time.Time

	loadGen    int
	loadCancel context.CancelFunc
}

// earliestID returns the oldest confirmed message ID held, or 0.
func (c *conversation) earliestID() int64 {
	for _, e := range c.entries {
		if e.State == StateConfirmed {
			return e.Message.ID
		}
	}
	return 0
}

// Manager owns every open conversation window: pagination, live-push
// merging, pending reconciliation and the cross-conversation memory
// budget.
type Manager struct {
	mu          sync.Mutex
	fetcher     PageFetcher
	pageSize    int
	bufferLimit int
	foreground  int64
	convs       map[int64]*conversation
}

// NewManager creates a manager over the given fetcher. pageSize and
// bufferLimit fall back to defaults when non-positive.
func NewManager(fetcher PageFetcher, pageSize, bufferLimit int) *Manager {
	if pageSize <= 0 {
		pageSize = 50
	}
	if bufferLimit <= 0 {
		bufferLimit = DefaultBufferLimit
	}
	return &Manager{
		fetcher:     fetcher,
		pageSize:    pageSize,
		bufferLimit: bufferLimit,
		convs:       make(map[int64]*conversation),
	}
}

// SetForeground marks the conversation the user is looking at. The
// foreground conversation is never evicted.
func (m *Manager) SetForeground(peerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.foreground = peerID
	if c, ok := m.convs[peerID]; ok {
		c.viewedAt = time.Now()
	}
}

// Messages returns a snapshot of a conversation's current window in
// ascending timestamp order.
func (m *Manager) Messages(peerID int64) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[peerID]
	if !ok {
		return nil
	}
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = *e
	}
	return out
}

// HasMore reports whether older history exists before the window. Before
// the first load it reports true.
func (m *Manager) HasMore(peerID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[peerID]
	if !ok || !c.fetched {
		return true
	}
	return c.hasMore
}

// LoadPage fetches the next older page for a conversation. The first
// call fetches the most recent page; later calls page backwards from the
// earliest held message. Starting a load while one is in flight cancels
// the earlier one, which returns ErrLoadSuperseded.
func (m *Manager) LoadPage(ctx context.Context, peerID int64) (int, error) {
	m.mu.Lock()
	c := m.conv(peerID)
	if c.loadCancel != nil {
		c.loadCancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.loadCancel = cancel
	c.loadGen++
	gen := c.loadGen
	beforeID := c.earliestID()
	m.mu.Unlock()

	page, err := m.fetcher.FetchPage(loadCtx, peerID, beforeID, m.pageSize)

	m.mu.Lock()
	defer m.mu.Unlock()

	if c.loadGen != gen {
		return 0, ErrLoadSuperseded
	}
	cancel()
	c.loadCancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, ErrLoadSuperseded
		}
		return 0, err
	}

	added := 0
	for i := range page.Messages {
		if m.insertLocked(c, StateConfirmed, "", page.Messages[i]) {
			added++
		}
	}
	c.fetched = true
	c.hasMore = page.HasMore
	c.viewedAt = time.Now()

	m.evictLocked()
	return added, nil
}

// ApplyLive merges a live-pushed message into its conversation,
// preserving ascending order and the dedupe invariant.
func (m *Manager) ApplyLive(peerID int64, msg proto.MessagePayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.conv(peerID)
	ok := m.insertLocked(c, StateConfirmed, "", msg)
	if ok {
		m.evictLocked()
	}
	return ok
}

// AppendPending renders an optimistic outgoing entry at the tail.
func (m *Manager) AppendPending(peerID int64, e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.conv(peerID)
	c.entries = append(c.entries, e)
}

// Confirm replaces a pending entry in place with its server-confirmed
// form, keyed by temp ID. A pending and confirmed copy of the same
// logical message never coexist.
func (m *Manager) Confirm(peerID int64, tempID string, msg proto.MessagePayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[peerID]
	if !ok {
		return false
	}
	for _, e := range c.entries {
		if e.State == StatePending && e.TempID == tempID {
			if _, dup := c.ids[msg.ID]; dup {
				// Already arrived through another path; drop the pending copy.
				m.removeTempLocked(c, tempID)
				return true
			}
			e.State = StateConfirmed
			e.Message = msg
			c.ids[msg.ID] = struct{}{}
			return true
		}
	}
	return false
}

// Fail marks a pending entry as failed-pending-retry.
func (m *Manager) Fail(peerID int64, tempID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[peerID]
	if !ok {
		return false
	}
	for _, e := range c.entries {
		if e.State == StatePending && e.TempID == tempID {
			e.State = StateFailed
			return true
		}
	}
	return false
}

// MarkRead flips the read flag on every confirmed message sent to the
// given reader.
func (m *Manager) MarkRead(peerID, readerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[peerID]
	if !ok {
		return
	}
	for _, e := range c.entries {
		if e.State == StateConfirmed && e.Message.ToUserID == readerID {
			e.Message.IsRead = true
		}
	}
}

// Size reports the total buffered message count across conversations.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sizeLocked()
}

func (m *Manager) conv(peerID int64) *conversation {
	c, ok := m.convs[peerID]
	if !ok {
		c = &conversation{
			peerID:   peerID,
			ids:      make(map[int64]struct{}),
			hasMore:  true,
			viewedAt: time.Now(),
		}
		m.convs[peerID] = c
	}
	return c
}

// insertLocked adds an entry preserving ascending timestamp order.
// Returns false for a duplicate message ID.
func (m *Manager) insertLocked(c *conversation, state MessageState, tempID string, msg proto.MessagePayload) bool {
	if msg.ID != 0 {
		if _, dup := c.ids[msg.ID]; dup {
			return false
		}
		c.ids[msg.ID] = struct{}{}
	}

	e := &Entry{State: state, TempID: tempID, Message: msg}

	// Common case: newer than everything held, append.
	n := len(c.entries)
	if n == 0 || !entryAfter(c.entries[n-1], e) {
		c.entries = append(c.entries, e)
		return true
	}

	i := sort.Search(n, func(i int) bool {
		return entryAfter(c.entries[i], e)
	})
	c.entries = append(c.entries, nil)
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
	return true
}

// entryAfter reports whether a sorts after b: by timestamp, message ID
// breaking ties.
func entryAfter(a, b *Entry) bool {
	if a.Message.Timestamp != b.Message.Timestamp {
		return a.Message.Timestamp > b.Message.Timestamp
	}
	return a.Message.ID > b.Message.ID
}

func (m *Manager) removeTempLocked(c *conversation, tempID string) {
	for i, e := range c.entries {
		if e.State == StatePending && e.TempID == tempID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

func (m *Manager) sizeLocked() int {
	total := 0
	for _, c := range m.convs {
		total += len(c.entries)
	}
	return total
}

// evictLocked trims the buffer back under the limit: oldest messages
// first, least-recently-viewed conversation first, never the foreground
// conversation, never more than needed. Evicted pages stay re-fetchable
// through LoadPage.
func (m *Manager) evictLocked() {
	excess := m.sizeLocked() - m.bufferLimit
	if excess <= 0 {
		return
	}

	victims := make([]*conversation, 0, len(m.convs))
	for id, c := range m.convs {
		if id == m.foreground || len(c.entries) == 0 {
			continue
		}
		victims = append(victims, c)
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].viewedAt.Before(victims[j].viewedAt)
	})

	for _, c := range victims {
		if excess <= 0 {
			return
		}
		n := excess
		if n > len(c.entries) {
			n = len(c.entries)
		}
		// Pending entries are not re-fetchable; keep them.
		cut := 0
		for cut < len(c.entries) && cut < n && c.entries[cut].State != StatePending {
			cut++
		}
		if cut == 0 {
			continue
		}
		for _, e := range c.entries[:cut] {
			if e.Message.ID != 0 {
				delete(c.ids, e.Message.ID)
			}
		}
		c.entries = append([]*Entry(nil), c.entries[cut:]...)
		c.hasMore = true
		excess -= cut
	}
}
