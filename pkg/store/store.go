// Package store defines the record store for beat listings.
package store

import (
	"context"

	"github.com/sigweihq/beatmarket/pkg/types"
)

// Store persists beat listings. Implementations return deep copies, so a
// caller never shares state with the store or another caller.
type Store interface {
	// CreateBeat inserts a new listing. It fails with types.ErrConflict when
	// the id is taken.
	CreateBeat(ctx context.Context, beat *types.BeatListing) error

	// FindBeat fails with types.ErrNotFound when the id is absent
	FindBeat(ctx context.Context, id string) (*types.BeatListing, error)

	// SaveBeat writes beat if its Version still matches the stored one, then
	// bumps beat.Version. A stale version fails with types.ErrConflict.
	SaveBeat(ctx context.Context, beat *types.BeatListing) error

	// ListListed returns the listings currently for sale, newest first
	ListListed(ctx context.Context) ([]*types.BeatListing, error)

	// MarkPurchased atomically transfers a listed, unpurchased beat to owner
	// and records txHash. If the beat is no longer listed or already carries
	// a purchase hash it fails with types.ErrConflict and writes nothing.
	MarkPurchased(ctx context.Context, id, owner, txHash string) (*types.BeatListing, error)

	Close() error
}
