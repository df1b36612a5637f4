package svm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// RPCClient implements chains.RPCClient for SVM chains
type RPCClient struct {
	chainID   chains.ChainID
	endpoints []string
}

// NewRPCClient creates a new SVM RPC client
func NewRPCClient(chainID chains.ChainID, endpoints []string) *RPCClient {
	return &RPCClient{
		chainID:   chainID,
		endpoints: endpoints,
	}
}

// Verify RPCClient implements interface
var _ chains.RPCClient = (*RPCClient)(nil)

// GetTransactionReceipt implements chains.RPCClient
// Cycles through endpoints with a random start for load balancing. A signature
// no endpoint has seen yet yields types.ErrNotFound.
func (r *RPCClient) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	if len(r.endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints available for chain %s", r.chainID)
	}

	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", txHash, err)
	}

	// Start at a random position for load balancing
	startIdx := rand.Intn(len(r.endpoints))
	initialDelay := constants.DelayBetweenRPCCalls
	notFound := 0
	var lastErr error

	for attempt := 0; attempt < len(r.endpoints); attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*constants.DelayBetweenRPCCalls+initialDelay) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		endpoint := r.endpoints[(startIdx+attempt)%len(r.endpoints)]

		receipt, err := r.getTransaction(ctx, endpoint, sig)
		if errors.Is(err, rpc.ErrNotFound) {
			notFound++
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}

		return receipt, nil
	}

	if notFound > 0 {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("signature %s not found on chain %s", txHash, r.chainID), nil)
	}
	return nil, fmt.Errorf("all RPC endpoints failed for chain %s: %w", r.chainID, lastErr)
}

// IsHealthy implements chains.RPCClient
func (r *RPCClient) IsHealthy(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	client := rpc.New(endpoint)
	defer client.Close()

	health, err := client.GetHealth(ctx)
	return err == nil && health == rpc.HealthOk
}

// getTransaction fetches a confirmed transaction from one endpoint
func (r *RPCClient) getTransaction(ctx context.Context, endpoint string, sig solana.Signature) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.TransactionReceiptTimeout)
	defer cancel()

	client := rpc.New(endpoint)
	defer client.Close()

	maxVersion := uint64(0)
	result, err := client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, rpc.ErrNotFound
	}

	status := types.ReceiptSuccess
	if result.Meta == nil || result.Meta.Err != nil {
		status = types.ReceiptFailure
	}

	return &types.Receipt{
		Hash:        sig.String(),
		Status:      status,
		BlockNumber: result.Slot,
		From:        feePayer(result),
	}, nil
}

// feePayer returns the first account key, which signs and pays for the transaction
func feePayer(result *rpc.GetTransactionResult) string {
	if result.Transaction == nil {
		return ""
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil || tx == nil || len(tx.Message.AccountKeys) == 0 {
		return ""
	}
	return tx.Message.AccountKeys[0].String()
}
