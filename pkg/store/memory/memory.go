// Package memory is an in-process Store for tests and single-node use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// Store keeps listings in a map guarded by a mutex
type Store struct {
	mu    sync.RWMutex
	beats map[string]*types.BeatListing
	now   func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		beats: make(map[string]*types.BeatListing),
		now:   time.Now,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateBeat(ctx context.Context, beat *types.BeatListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.beats[beat.ID]; exists {
		return types.NewError(types.KindConflict, fmt.Sprintf("beat %s already exists", beat.ID), nil)
	}
	now := s.now().UTC()
	if beat.CreatedAt.IsZero() {
		beat.CreatedAt = now
	}
	beat.UpdatedAt = now
	if beat.Version == 0 {
		beat.Version = 1
	}
	s.beats[beat.ID] = beat.Clone()
	return nil
}

func (s *Store) FindBeat(ctx context.Context, id string) (*types.BeatListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	beat, ok := s.beats[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("beat %s", id), nil)
	}
	return beat.Clone(), nil
}

func (s *Store) SaveBeat(ctx context.Context, beat *types.BeatListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.beats[beat.ID]
	if !ok {
		return types.NewError(types.KindNotFound, fmt.Sprintf("beat %s", beat.ID), nil)
	}
	if current.Version != beat.Version {
		return types.NewError(types.KindConflict, fmt.Sprintf("beat %s is at version %d, not %d", beat.ID, current.Version, beat.Version), nil)
	}

	beat.Version++
	beat.CreatedAt = current.CreatedAt
	beat.UpdatedAt = s.now().UTC()
	s.beats[beat.ID] = beat.Clone()
	return nil
}

func (s *Store) ListListed(ctx context.Context) ([]*types.BeatListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.BeatListing, 0, len(s.beats))
	for _, beat := range s.beats {
		if beat.IsListed {
			out = append(out, beat.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkPurchased(ctx context.Context, id, owner, txHash string) (*types.BeatListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	beat, ok := s.beats[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("beat %s", id), nil)
	}
	if !beat.IsListed || beat.PurchaseTxHash != nil {
		return nil, types.NewError(types.KindConflict, fmt.Sprintf("beat %s is no longer for sale", id), nil)
	}

	updated := beat.Clone()
	updated.OwnerAddress = &owner
	updated.IsListed = false
	updated.PurchaseTxHash = &txHash
	updated.Version++
	updated.UpdatedAt = s.now().UTC()
	s.beats[id] = updated
	return updated.Clone(), nil
}

func (s *Store) Close() error {
	return nil
}
