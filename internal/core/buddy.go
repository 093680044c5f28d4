package core

import (
	"sync"
	"time"
)

// BuddyEdge is a directed relationship: the owner's list contains the
// buddy. Visibility is not symmetric; presence events for a subject go
// only to users holding an edge watcher -> subject.
type BuddyEdge struct {
	OwnerID   int64
	BuddyID   int64
	Nick      string
	GroupName string
	AddedAt   time.Time
}

// BuddyIndex keeps the forward edge map and a reverse watcher index so
// watcher lookups never scan. HTTP handlers mutate it through the buddy
// service while the hub reads it, hence the lock.
type BuddyIndex struct {
	mu      sync.RWMutex
	forward map[int64]map[int64]*BuddyEdge
	reverse map[int64]map[int64]struct{}
}

// NewBuddyIndex constructs an empty index.
func NewBuddyIndex() *BuddyIndex {
	return &BuddyIndex{
		forward: make(map[int64]map[int64]*BuddyEdge),
		reverse: make(map[int64]map[int64]struct{}),
	}
}

// Load seeds the index from persisted edges at startup.
func (b *BuddyIndex) Load(edges []*BuddyEdge) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range edges {
		b.insert(e)
	}
}

func (b *BuddyIndex) insert(e *BuddyEdge) {
	if b.forward[e.OwnerID] == nil {
		b.forward[e.OwnerID] = make(map[int64]*BuddyEdge)
	}
	b.forward[e.OwnerID][e.BuddyID] = e
	if b.reverse[e.BuddyID] == nil {
		b.reverse[e.BuddyID] = make(map[int64]struct{})
	}
	b.reverse[e.BuddyID][e.OwnerID] = struct{}{}
}

// Add inserts a directed edge. Self edges and duplicates are rejected.
func (b *BuddyIndex) Add(e *BuddyEdge) error {
	if e.OwnerID == e.BuddyID {
		return ErrSelfBuddy
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.forward[e.OwnerID][e.BuddyID]; exists {
		return ErrBuddyExists
	}
	b.insert(e)
	return nil
}

// Remove deletes an edge. Removing an absent edge is not an error;
// returns whether anything was removed.
func (b *BuddyIndex) Remove(ownerID, buddyID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.forward[ownerID][buddyID]; !exists {
		return false
	}
	delete(b.forward[ownerID], buddyID)
	if len(b.forward[ownerID]) == 0 {
		delete(b.forward, ownerID)
	}
	delete(b.reverse[buddyID], ownerID)
	if len(b.reverse[buddyID]) == 0 {
		delete(b.reverse, buddyID)
	}
	return true
}

// Update replaces the display metadata on an existing edge.
func (b *BuddyIndex) Update(ownerID, buddyID int64, nick, groupName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, exists := b.forward[ownerID][buddyID]
	if !exists {
		return ErrBuddyNotFound
	}
	e.Nick = nick
	e.GroupName = groupName
	return nil
}

// WatchersOf returns every user whose list contains the subject.
func (b *BuddyIndex) WatchersOf(subjectID int64) []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	watchers := make([]int64, 0, len(b.reverse[subjectID]))
	for w := range b.reverse[subjectID] {
		watchers = append(watchers, w)
	}
	return watchers
}

// ListOwner returns the owner's edges.
func (b *BuddyIndex) ListOwner(ownerID int64) []*BuddyEdge {
	b.mu.RLock()
	defer b.mu.RUnlock()

	edges := make([]*BuddyEdge, 0, len(b.forward[ownerID]))
	for _, e := range b.forward[ownerID] {
		copied := *e
		edges = append(edges, &copied)
	}
	return edges
}

// Has reports whether the directed edge owner -> buddy exists.
func (b *BuddyIndex) Has(ownerID, buddyID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.forward[ownerID][buddyID]
	return exists
}
