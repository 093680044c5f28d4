package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuddyIndexAdd(t *testing.T) {
	b := NewBuddyIndex()

	require.NoError(t, b.Add(&BuddyEdge{OwnerID: 1, BuddyID: 2, Nick: "bob"}))
	assert.True(t, b.Has(1, 2))
	assert.False(t, b.Has(2, 1), "edges are directed")

	assert.ErrorIs(t, b.Add(&BuddyEdge{OwnerID: 1, BuddyID: 2}), ErrBuddyExists)
	assert.ErrorIs(t, b.Add(&BuddyEdge{OwnerID: 1, BuddyID: 1}), ErrSelfBuddy)
}

func TestBuddyIndexRemoveIdempotent(t *testing.T) {
	b := NewBuddyIndex()
	require.NoError(t, b.Add(&BuddyEdge{OwnerID: 1, BuddyID: 2}))

	assert.True(t, b.Remove(1, 2))
	assert.False(t, b.Remove(1, 2))
	assert.False(t, b.Has(1, 2))
	assert.Empty(t, b.WatchersOf(2))
}

func TestBuddyIndexWatchers(t *testing.T) {
	b := NewBuddyIndex()
	b.Load([]*BuddyEdge{
		{OwnerID: 1, BuddyID: 3},
		{OwnerID: 2, BuddyID: 3},
		{OwnerID: 3, BuddyID: 1},
	})

	assert.ElementsMatch(t, []int64{1, 2}, b.WatchersOf(3))
	assert.ElementsMatch(t, []int64{3}, b.WatchersOf(1))
	assert.Empty(t, b.WatchersOf(2))
}

func TestBuddyIndexUpdate(t *testing.T) {
	b := NewBuddyIndex()
	require.NoError(t, b.Add(&BuddyEdge{OwnerID: 1, BuddyID: 2, Nick: "bob"}))

	require.NoError(t, b.Update(1, 2, "bobby", "work"))
	edges := b.ListOwner(1)
	require.Len(t, edges, 1)
	assert.Equal(t, "bobby", edges[0].Nick)
	assert.Equal(t, "work", edges[0].GroupName)

	assert.ErrorIs(t, b.Update(2, 1, "x", ""), ErrBuddyNotFound)
}

func TestRegistrySupersede(t *testing.T) {
	r := NewRegistry()

	first := NewClient(1, "alice")
	assert.Nil(t, r.Register(first))
	assert.True(t, r.IsReachable(1))

	second := NewClient(1, "alice")
	assert.Same(t, first, r.Register(second))
	assert.Same(t, second, r.Get(1))

	// The stale connection unregistering must not evict the new one.
	assert.False(t, r.Unregister(first))
	assert.True(t, r.IsReachable(1))

	assert.True(t, r.Unregister(second))
	assert.False(t, r.IsReachable(1))
	assert.Equal(t, 0, r.Len())
}

func TestClientSendAfterClose(t *testing.T) {
	c := NewClient(1, "alice")
	assert.True(t, c.send(&Event{Kind: EventTyping}))

	c.Close()
	c.Close() // idempotent
	assert.False(t, c.send(&Event{Kind: EventTyping}))
}

func TestClientSendFullBuffer(t *testing.T) {
	c := NewClient(1, "alice")
	for i := 0; i < cap(c.Events); i++ {
		require.True(t, c.send(&Event{Kind: EventTyping}))
	}
	// A full buffer is a transport failure, not a block.
	assert.False(t, c.send(&Event{Kind: EventTyping}))
}
