package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// RPCClient implements chains.RPCClient for EVM chains
type RPCClient struct {
	chainID   chains.ChainID
	endpoints []string
}

// NewRPCClient creates a new EVM RPC client
func NewRPCClient(chainID chains.ChainID, endpoints []string) *RPCClient {
	return &RPCClient{
		chainID:   chainID,
		endpoints: endpoints,
	}
}

// Verify RPCClient implements the interface
var _ chains.RPCClient = (*RPCClient)(nil)

// Endpoints returns the endpoints in failover order
func (r *RPCClient) Endpoints() []string {
	out := make([]string, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// GetTransactionReceipt implements chains.RPCClient
// Uses random start position for load balancing across RPC endpoints.
// A receipt that no endpoint knows about yet yields types.ErrNotFound.
func (r *RPCClient) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	if len(r.endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints available for chain %s", r.chainID)
	}

	// Start at a random position for load balancing
	startIdx := rand.Intn(len(r.endpoints))
	initialDelay := constants.DelayBetweenRPCCalls
	notFound := 0
	var lastErr error

	for i := 0; i < len(r.endpoints); i++ {
		if i > 0 {
			delay := time.Duration(i*constants.DelayBetweenRPCCalls+initialDelay) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		// Wrap around using modulo for round-robin
		endpoint := r.endpoints[(startIdx+i)%len(r.endpoints)]

		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			lastErr = &RPCError{ChainID: r.chainID, Endpoint: endpoint, Err: err}
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, constants.TransactionReceiptTimeout)
		receipt, parties, err := patchedTransactionReceipt(callCtx, client, common.HexToHash(txHash))
		client.Close()
		cancel()

		if errors.Is(err, errReceiptNotFound) {
			notFound++
			continue
		}
		if err != nil {
			lastErr = &RPCError{ChainID: r.chainID, Endpoint: endpoint, Err: err}
			continue
		}

		return toReceipt(receipt, parties), nil
	}

	if notFound > 0 {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("receipt %s not found on chain %s", txHash, r.chainID), nil)
	}
	return nil, fmt.Errorf("all RPC endpoints failed for chain %s: %w", r.chainID, lastErr)
}

// IsHealthy implements chains.RPCClient
func (r *RPCClient) IsHealthy(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)
	return err == nil
}

var errReceiptNotFound = errors.New("not found")

// Parties are the sender and recipient of a receipt. go-ethereum's Receipt
// does not decode either.
type Parties struct {
	From string
	To   string
}

// patchedTransactionReceipt gets a transaction receipt tolerating the
// non-standard blockTimestamp log field some L2 nodes return.
func patchedTransactionReceipt(ctx context.Context, client *ethclient.Client, txHash common.Hash) (*ethtypes.Receipt, Parties, error) {
	var raw json.RawMessage
	err := client.Client().CallContext(ctx, &raw, "eth_getTransactionReceipt", txHash)
	if err != nil {
		return nil, Parties{}, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, Parties{}, errReceiptNotFound
	}
	return DecodeReceipt(raw)
}

// DecodeReceipt decodes a raw eth_getTransactionReceipt result, dropping the
// log fields go-ethereum rejects.
func DecodeReceipt(raw json.RawMessage) (*ethtypes.Receipt, Parties, error) {
	cleaned, parties, err := stripBlockTimestampFromLogs(raw)
	if err != nil {
		return nil, Parties{}, err
	}

	var receipt ethtypes.Receipt
	if err := json.Unmarshal(cleaned, &receipt); err != nil {
		return nil, Parties{}, err
	}

	return &receipt, parties, nil
}

// stripBlockTimestampFromLogs removes the blockTimestamp field from transaction logs
func stripBlockTimestampFromLogs(raw json.RawMessage) ([]byte, Parties, error) {
	var receiptMap map[string]interface{}
	if err := json.Unmarshal(raw, &receiptMap); err != nil {
		return nil, Parties{}, err
	}

	logs, ok := receiptMap["logs"].([]interface{})
	if ok {
		for _, log := range logs {
			logMap, ok := log.(map[string]interface{})
			if ok {
				delete(logMap, "blockTimestamp")
			}
		}
	}

	var parties Parties
	parties.From, _ = receiptMap["from"].(string)
	parties.To, _ = receiptMap["to"].(string)
	cleaned, err := json.Marshal(receiptMap)
	return cleaned, parties, err
}

func toReceipt(receipt *ethtypes.Receipt, parties Parties) *types.Receipt {
	status := types.ReceiptFailure
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		status = types.ReceiptSuccess
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return &types.Receipt{
		Hash:        strings.ToLower(receipt.TxHash.Hex()),
		Status:      status,
		BlockNumber: block,
		From:        checksum(parties.From),
		To:          checksum(parties.To),
	}
}

func checksum(addr string) string {
	if addr == "" {
		return ""
	}
	return common.HexToAddress(addr).Hex()
}
