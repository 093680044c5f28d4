package buddies

import (
	"context"
	"errors"
	"fmt"

	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/store"
)

// Common errors for buddy list operations.
var (
	ErrCannotAddSelf = errors.New("cannot add yourself as a buddy")
	ErrAlreadyBuddy  = errors.New("buddy already on list")
	ErrBuddyNotFound = errors.New("buddy not found")
	ErrUserNotFound  = errors.New("user not found")
)

// Service provides buddy list management. It keeps the durable rows and
// the hub's in-memory index in sync; the index is what presence
// broadcasts consult.
type Service struct {
	store store.Store
	index *core.BuddyIndex
}

// New creates a buddy service over the given store and index.
func New(st store.Store, index *core.BuddyIndex) *Service {
	return &Service{
		store: st,
		index: index,
	}
}

// WarmIndex loads every persisted edge into the in-memory index. Called
// once at startup before the hub starts broadcasting.
func (s *Service) WarmIndex(ctx context.Context) error {
	rows, err := s.store.ListAllBuddies(ctx)
	if err != nil {
		return fmt.Errorf("list buddies: %w", err)
	}

	edges := make([]*core.BuddyEdge, 0, len(rows))
	for _, b := range rows {
		edges = append(edges, edgeFromRow(b))
	}
	s.index.Load(edges)
	return nil
}

// Add creates a directed edge owner -> buddy. Self edges are rejected,
// duplicates conflict, and the buddy must resolve to a real user.
func (s *Service) Add(ctx context.Context, ownerID, buddyID int64, nick, groupName string) (*store.Buddy, error) {
	if ownerID == buddyID {
		return nil, ErrCannotAddSelf
	}

	buddy, err := s.store.GetUserByID(ctx, buddyID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if _, err := s.store.GetBuddy(ctx, ownerID, buddyID); err == nil {
		return nil, ErrAlreadyBuddy
	}

	if nick == "" {
		nick = buddy.ScreenName
	}

	row, err := s.store.CreateBuddy(ctx, ownerID, buddyID, nick, groupName)
	if err != nil {
		// Two concurrent adds can both pass the existence check; the
		// unique index decides, and the loser is still a conflict.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyBuddy
		}
		return nil, fmt.Errorf("create buddy: %w", err)
	}

	if err := s.index.Add(edgeFromRow(row)); err != nil && !errors.Is(err, core.ErrBuddyExists) {
		return nil, fmt.Errorf("index buddy: %w", err)
	}
	return row, nil
}

// Remove deletes an edge. Idempotent: removing an absent edge succeeds.
func (s *Service) Remove(ctx context.Context, ownerID, buddyID int64) error {
	if _, err := s.store.DeleteBuddy(ctx, ownerID, buddyID); err != nil {
		return fmt.Errorf("delete buddy: %w", err)
	}
	s.index.Remove(ownerID, buddyID)
	return nil
}

// Update replaces the display metadata on an existing edge.
func (s *Service) Update(ctx context.Context, ownerID, buddyID int64, nick, groupName string) error {
	if err := s.store.UpdateBuddy(ctx, ownerID, buddyID, nick, groupName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBuddyNotFound
		}
		return fmt.Errorf("update buddy: %w", err)
	}
	if err := s.index.Update(ownerID, buddyID, nick, groupName); err != nil {
		return fmt.Errorf("index update: %w", err)
	}
	return nil
}

// List returns the owner's buddy list.
func (s *Service) List(ctx context.Context, ownerID int64) ([]*store.Buddy, error) {
	rows, err := s.store.ListBuddies(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list buddies: %w", err)
	}
	return rows, nil
}

func edgeFromRow(b *store.Buddy) *core.BuddyEdge {
	return &core.BuddyEdge{
		OwnerID:   b.OwnerID,
		BuddyID:   b.BuddyID,
		Nick:      b.Nick,
		GroupName: b.GroupName,
		AddedAt:   b.CreatedAt,
	}
}
