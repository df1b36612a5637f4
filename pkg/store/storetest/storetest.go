// Package storetest runs the behaviour every store.Store must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// NewBeat returns a listed, unpurchased beat
func NewBeat(id string) *types.BeatListing {
	return &types.BeatListing{
		ID:             id,
		Title:          "Night Drive " + id,
		Genre:          "trap",
		BPM:            140,
		Key:            "F minor",
		AudioFile:      "ipfs://QmAudio" + id,
		Price:          "0.5",
		CreatorAddress: "0x1111111111111111111111111111111111111111",
		IsListed:       true,
	}
}

// Run exercises the store contract against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateAndFind", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))

		got, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Night Drive b1", got.Title)
		assert.Equal(t, "F minor", got.Key)
		assert.True(t, got.IsListed)
		assert.Nil(t, got.PurchaseTxHash)
		assert.Equal(t, int64(1), got.Version)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))
		err := s.CreateBeat(ctx, NewBeat("b1"))
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("FindMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindBeat(ctx, "nope")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("ReturnedCopiesAreIndependent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))

		got, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		got.Title = "changed"
		got.IsListed = false

		again, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Night Drive b1", again.Title)
		assert.True(t, again.IsListed)
	})

	t.Run("SaveChecksVersion", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))

		first, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		second, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)

		first.Price = "0.75"
		require.NoError(t, s.SaveBeat(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.Price = "0.1"
		err = s.SaveBeat(ctx, second)
		assert.ErrorIs(t, err, types.ErrConflict)

		got, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "0.75", got.Price)
	})

	t.Run("ListListed", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b2")))
		unlisted := NewBeat("b3")
		unlisted.IsListed = false
		require.NoError(t, s.CreateBeat(ctx, unlisted))

		listed, err := s.ListListed(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, "b2", listed[0].ID)
		assert.Equal(t, "b1", listed[1].ID)
	})

	t.Run("MarkPurchased", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))

		got, err := s.MarkPurchased(ctx, "b1", "0xbuyer", "0xabc")
		require.NoError(t, err)
		assert.False(t, got.IsListed)
		require.NotNil(t, got.OwnerAddress)
		assert.Equal(t, "0xbuyer", *got.OwnerAddress)
		require.NotNil(t, got.PurchaseTxHash)
		assert.Equal(t, "0xabc", *got.PurchaseTxHash)
		assert.Equal(t, int64(2), got.Version)

		stored, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, got.PurchaseTxHash, stored.PurchaseTxHash)

		listed, err := s.ListListed(ctx)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("MarkPurchasedTwice", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))
		_, err := s.MarkPurchased(ctx, "b1", "0xbuyer", "0xabc")
		require.NoError(t, err)

		_, err = s.MarkPurchased(ctx, "b1", "0xother", "0xdef")
		assert.ErrorIs(t, err, types.ErrConflict)

		stored, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "0xbuyer", *stored.OwnerAddress)
		assert.Equal(t, "0xabc", *stored.PurchaseTxHash)
	})

	t.Run("MarkPurchasedMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.MarkPurchased(ctx, "nope", "0xbuyer", "0xabc")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("MarkPurchasedConcurrent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateBeat(ctx, NewBeat("b1")))

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.MarkPurchased(ctx, "b1", "0xbuyer", "0xabc")
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})
}
