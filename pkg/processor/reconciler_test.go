package processor

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/store/memory"
	"github.com/sigweihq/beatmarket/pkg/store/storetest"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buyer = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func seeded(t *testing.T) (*memory.Store, *Reconciler) {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.CreateBeat(context.Background(), storetest.NewBeat("b1")))
	return s, NewReconciler(s, nil, nil)
}

func success(hash string) *types.Receipt {
	return &types.Receipt{Hash: hash, Status: types.ReceiptSuccess, BlockNumber: 100, From: buyer}
}

func TestReconcileUpdatesThenIsIdempotent(t *testing.T) {
	s, r := seeded(t)
	ctx := context.Background()

	result, err := r.Reconcile(ctx, "b1", success("0xabc"))
	require.NoError(t, err)
	assert.Equal(t, Updated, result.Outcome)
	assert.False(t, result.Listing.IsListed)
	require.NotNil(t, result.Listing.OwnerAddress)
	assert.Equal(t, buyer, *result.Listing.OwnerAddress)
	require.NotNil(t, result.Listing.PurchaseTxHash)
	assert.Equal(t, "0xabc", *result.Listing.PurchaseTxHash)

	after, err := s.FindBeat(ctx, "b1")
	require.NoError(t, err)

	result, err = r.Reconcile(ctx, "b1", success("0xabc"))
	require.NoError(t, err)
	assert.Equal(t, AlreadyReconciled, result.Outcome)

	again, err := s.FindBeat(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestReconcileHexHashIgnoresCase(t *testing.T) {
	_, r := seeded(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, "b1", success("0xabc"))
	require.NoError(t, err)

	result, err := r.Reconcile(ctx, "b1", success("0xABC"))
	require.NoError(t, err)
	assert.Equal(t, AlreadyReconciled, result.Outcome)
}

func TestReconcileSignatureIsCaseSensitive(t *testing.T) {
	_, r := seeded(t)
	ctx := context.Background()

	sig := "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
	_, err := r.Reconcile(ctx, "b1", success(sig))
	require.NoError(t, err)

	result, err := r.Reconcile(ctx, "b1", success(strings.ToLower(sig)))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
}

func TestReconcileFailedReceipt(t *testing.T) {
	s, r := seeded(t)
	ctx := context.Background()

	receipt := success("0xabc")
	receipt.Status = types.ReceiptFailure
	result, err := r.Reconcile(ctx, "b1", receipt)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)

	beat, err := s.FindBeat(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, beat.IsListed)
	assert.Nil(t, beat.PurchaseTxHash)
	assert.Equal(t, int64(1), beat.Version)
}

func TestReconcileSoldToSomeoneElse(t *testing.T) {
	_, r := seeded(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, "b1", success("0xabc"))
	require.NoError(t, err)

	result, err := r.Reconcile(ctx, "b1", success("0xdef"))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.Equal(t, "0xabc", *result.Listing.PurchaseTxHash)
}

func TestReconcileUnlistedBeat(t *testing.T) {
	s := memory.New()
	beat := storetest.NewBeat("b2")
	beat.IsListed = false
	require.NoError(t, s.CreateBeat(context.Background(), beat))

	result, err := NewReconciler(s, nil, nil).Reconcile(context.Background(), "b2", success("0xabc"))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
}

func TestReconcileMissingSender(t *testing.T) {
	_, r := seeded(t)
	receipt := success("0xabc")
	receipt.From = ""

	result, err := r.Reconcile(context.Background(), "b1", receipt)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
}

func TestReconcileMissingBeat(t *testing.T) {
	_, r := seeded(t)
	_, err := r.Reconcile(context.Background(), "nope", success("0xabc"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReconcileConcurrentDifferentHashes(t *testing.T) {
	for i := 0; i < 20; i++ {
		s, r := seeded(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		outcomes := make([]Outcome, 2)
		for j, hash := range []string{"0xaaa", "0xbbb"} {
			wg.Add(1)
			go func(j int, hash string) {
				defer wg.Done()
				result, err := r.Reconcile(ctx, "b1", success(hash))
				if err == nil {
					outcomes[j] = result.Outcome
				}
			}(j, hash)
		}
		wg.Wait()

		assert.ElementsMatch(t, []Outcome{Updated, Rejected}, outcomes)

		beat, err := s.FindBeat(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), beat.Version)
	}
}

func TestReconcileConcurrentSameHash(t *testing.T) {
	s, r := seeded(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 4)
	for j := range outcomes {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			result, err := r.Reconcile(ctx, "b1", success("0xabc"))
			if err == nil {
				outcomes[j] = result.Outcome
			}
		}(j)
	}
	wg.Wait()

	updated := 0
	for _, o := range outcomes {
		if o == Updated {
			updated++
		} else {
			assert.Equal(t, AlreadyReconciled, o)
		}
	}
	assert.Equal(t, 1, updated)

	beat, err := s.FindBeat(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), beat.Version)
}
