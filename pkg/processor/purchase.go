package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/metrics"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// PurchaseProcessor looks up purchase transactions on chain and reconciles
// them against the store.
type PurchaseProcessor struct {
	registry   *chains.Registry
	reconciler *Reconciler
	logger     *slog.Logger
	metrics    metrics.Recorder
	contract   string
}

// PurchaseOption configures a PurchaseProcessor
type PurchaseOption func(*PurchaseProcessor)

// WithContract only accepts EVM purchase transactions sent to address
func WithContract(address string) PurchaseOption {
	return func(p *PurchaseProcessor) {
		p.contract = address
	}
}

// NewPurchaseProcessor creates a processor that resolves chain adapters
// through registry
func NewPurchaseProcessor(registry *chains.Registry, reconciler *Reconciler, logger *slog.Logger, recorder metrics.Recorder, opts ...PurchaseOption) *PurchaseProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	p := &PurchaseProcessor{
		registry:   registry,
		reconciler: reconciler,
		logger:     logger,
		metrics:    recorder,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConfirmPurchase fetches the receipt for txHash on chainID and reconciles
// it for beatID. A pending transaction, a malformed hash, a sender other
// than buyer or a call to another contract yields Rejected. buyer may be
// empty to accept any sender.
func (p *PurchaseProcessor) ConfirmPurchase(ctx context.Context, chainID chains.ChainID, beatID, txHash, buyer string) (*Result, error) {
	adapter, err := p.registry.Adapter(chainID)
	if err != nil {
		return nil, err
	}
	validator := adapter.TransactionValidator()

	hash, err := validator.NormalizeTransactionHash(txHash)
	if err != nil {
		p.logger.Warn("invalid purchase transaction hash", "chain", chainID, "beat_id", beatID, "error", err)
		return &Result{Outcome: Rejected, Reason: err.Error()}, nil
	}

	start := time.Now()
	receipt, err := adapter.RPCClient().GetTransactionReceipt(ctx, hash)
	p.metrics.ObserveLatency(metrics.ReceiptLookup, time.Since(start), map[string]string{"chain": chainID.String()})
	if errors.Is(err, types.ErrNotFound) {
		p.metrics.IncCounter(metrics.ReceiptLookup, map[string]string{"chain": chainID.String(), "result": "pending"})
		return &Result{Outcome: Rejected, Reason: "transaction is not mined yet"}, nil
	}
	if err != nil {
		p.metrics.IncCounter(metrics.ReceiptLookup, map[string]string{"chain": chainID.String(), "result": "error"})
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", hash, err)
	}
	p.metrics.IncCounter(metrics.ReceiptLookup, map[string]string{"chain": chainID.String(), "result": "found"})

	if receipt.Hash == "" {
		receipt.Hash = hash
	}
	if buyer != "" {
		if receipt.From == "" {
			receipt.From = buyer
		} else if !validator.AddressesEqual(receipt.From, buyer) {
			p.logger.Warn("purchase sender mismatch", "chain", chainID, "beat_id", beatID, "from", receipt.From, "buyer", buyer)
			return &Result{Outcome: Rejected, Reason: "transaction was not sent by the buyer"}, nil
		}
	}

	if p.contract != "" && p.family(chainID) == chains.FamilyEVM && !validator.AddressesEqual(receipt.To, p.contract) {
		p.logger.Warn("purchase sent to another contract", "chain", chainID, "beat_id", beatID, "to", receipt.To)
		return &Result{Outcome: Rejected, Reason: "transaction did not call the marketplace contract"}, nil
	}

	return p.reconciler.Reconcile(ctx, beatID, receipt)
}

func (p *PurchaseProcessor) family(chainID chains.ChainID) chains.Family {
	desc, err := p.registry.Describe(chainID)
	if err != nil {
		return ""
	}
	return desc.Family
}
