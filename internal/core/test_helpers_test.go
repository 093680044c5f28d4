package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeStore is an in-memory store.Store for hub tests.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	messages map[int64]*store.Message
	offline  map[int64][]int64 // recipient -> message IDs, FIFO
	presence map[int64]*store.Presence
	nextMsg  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*store.User),
		messages: make(map[int64]*store.Message),
		offline:  make(map[int64][]int64),
		presence: make(map[int64]*store.Presence),
	}
}

func (f *fakeStore) addUser(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &store.User{ID: id, ScreenName: name, CreatedAt: time.Now()}
}

func (f *fakeStore) CreateUser(_ context.Context, screenName, passwordHash string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.users) + 1)
	u := &store.User{ID: id, ScreenName: screenName, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByScreenName(_ context.Context, screenName string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ScreenName == screenName {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) SearchUsers(_ context.Context, _ string) ([]*store.User, error) {
	return nil, nil
}

func (f *fakeStore) CreateBuddy(_ context.Context, _, _ int64, _, _ string) (*store.Buddy, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBuddy(_ context.Context, _, _ int64) (*store.Buddy, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateBuddy(_ context.Context, _, _ int64, _, _ string) error {
	return store.ErrNotFound
}

func (f *fakeStore) DeleteBuddy(_ context.Context, _, _ int64) (bool, error) {
	return false, nil
}

func (f *fakeStore) ListBuddies(_ context.Context, _ int64) ([]*store.Buddy, error) {
	return nil, nil
}

func (f *fakeStore) ListAllBuddies(_ context.Context) ([]*store.Buddy, error) {
	return nil, nil
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsg++
	msg.ID = f.nextMsg
	copied := *msg
	f.messages[msg.ID] = &copied
	return nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		m.IsDelivered = true
	}
	return nil
}

func (f *fakeStore) MarkConversationRead(_ context.Context, readerID, fromID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.FromUserID == fromID && m.ToUserID == readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListConversation(_ context.Context, _, _ int64, _ int, _ int64) ([]*store.Message, error) {
	return nil, nil
}

func (f *fakeStore) CountConversation(_ context.Context, _, _ int64) (int64, error) {
	return 0, nil
}

func (f *fakeStore) EnqueueOffline(_ context.Context, recipientID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline[recipientID] = append(f.offline[recipientID], messageID)
	return nil
}

func (f *fakeStore) FlushOffline(_ context.Context, recipientID int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.offline[recipientID]
	delete(f.offline, recipientID)
	out := make([]*store.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			m.IsDelivered = true
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) CountOffline(_ context.Context, recipientID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.offline[recipientID])), nil
}

func (f *fakeStore) UpsertPresence(_ context.Context, p *store.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *p
	f.presence[p.UserID] = &copied
	return nil
}

func (f *fakeStore) GetPresence(_ context.Context, userID int64) (*store.Presence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.presence[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) Close() error { return nil }

// newTestHub builds a hub over a fake store with a buddy edge set and
// starts its run loop.
func newTestHub(t *testing.T, ctx context.Context, st *fakeStore, edges ...[2]int64) *Hub {
	t.Helper()

	index := NewBuddyIndex()
	for _, e := range edges {
		if err := index.Add(&BuddyEdge{OwnerID: e[0], BuddyID: e[1]}); err != nil {
			t.Fatalf("add edge %v: %v", e, err)
		}
	}

	logger := zerolog.Nop()
	hub := NewHub(st, index, HubConfig{IdleCheckInterval: time.Hour}, &logger)
	go hub.Run(ctx)
	return hub
}
