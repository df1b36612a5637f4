// Package processor confirms on-chain purchases and applies them to the
// record store.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sigweihq/beatmarket/pkg/metrics"
	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// Outcome is the result of reconciling one receipt
type Outcome string

const (
	Updated           Outcome = "updated"
	AlreadyReconciled Outcome = "already_reconciled"
	Rejected          Outcome = "rejected"
)

// Result carries the outcome and the listing as stored afterwards. Reason
// explains a rejection.
type Result struct {
	Outcome Outcome
	Listing *types.BeatListing
	Reason  string
}

// Reconciler applies confirmed purchases to the store
type Reconciler struct {
	store   store.Store
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewReconciler creates a reconciler over s
func NewReconciler(s store.Store, logger *slog.Logger, recorder metrics.Recorder) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Reconciler{store: s, logger: logger, metrics: recorder}
}

// Reconcile transfers beatID to the receipt's sender. Rejected and
// AlreadyReconciled results leave the store untouched. The returned error is
// reserved for store failures and missing beats.
func (r *Reconciler) Reconcile(ctx context.Context, beatID string, receipt *types.Receipt) (*Result, error) {
	result, err := r.reconcile(ctx, beatID, receipt)
	if err != nil {
		r.metrics.IncCounter(metrics.PurchaseOutcome, map[string]string{"result": "error"})
		return nil, err
	}

	r.metrics.IncCounter(metrics.PurchaseOutcome, map[string]string{"result": string(result.Outcome)})
	attrs := []any{"beat_id", beatID, "tx_hash", receipt.Hash, "outcome", result.Outcome}
	if result.Reason != "" {
		attrs = append(attrs, "reason", result.Reason)
	}
	r.logger.Info("purchase reconciled", attrs...)
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, beatID string, receipt *types.Receipt) (*Result, error) {
	if receipt == nil {
		return &Result{Outcome: Rejected, Reason: "no receipt"}, nil
	}

	beat, err := r.store.FindBeat(ctx, beatID)
	if err != nil {
		return nil, err
	}

	if !receipt.Successful() {
		return &Result{Outcome: Rejected, Listing: beat, Reason: "transaction failed on chain"}, nil
	}
	if beat.PurchaseTxHash != nil && sameHash(*beat.PurchaseTxHash, receipt.Hash) {
		return &Result{Outcome: AlreadyReconciled, Listing: beat}, nil
	}
	if !beat.IsListed || beat.PurchaseTxHash != nil {
		return &Result{Outcome: Rejected, Listing: beat, Reason: "beat is not for sale"}, nil
	}
	if receipt.From == "" {
		return &Result{Outcome: Rejected, Listing: beat, Reason: "receipt has no sender"}, nil
	}

	updated, err := r.store.MarkPurchased(ctx, beatID, receipt.From, receipt.Hash)
	if errors.Is(err, types.ErrConflict) {
		// lost the race, report what the winner wrote
		current, findErr := r.store.FindBeat(ctx, beatID)
		if findErr != nil {
			return nil, findErr
		}
		if current.PurchaseTxHash != nil && sameHash(*current.PurchaseTxHash, receipt.Hash) {
			return &Result{Outcome: AlreadyReconciled, Listing: current}, nil
		}
		return &Result{Outcome: Rejected, Listing: current, Reason: "beat was purchased concurrently"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: Updated, Listing: updated}, nil
}

// sameHash compares transaction hashes. 0x-prefixed hex hashes ignore case,
// base58 signatures do not.
func sameHash(a, b string) bool {
	if hexHash(a) && hexHash(b) {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func hexHash(h string) bool {
	return strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X")
}
