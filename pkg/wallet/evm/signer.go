package evm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/beatmarket/pkg/chains"
	chainevm "github.com/sigweihq/beatmarket/pkg/chains/evm"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/transport/wsrpc"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// Signer sends transactions through the wallet, which holds the keys
type Signer struct {
	provider     Provider
	account      common.Address
	chainID      chains.ChainID
	pollInterval time.Duration
}

// NewSigner creates a signer for account on chainID
func NewSigner(provider Provider, account common.Address, chainID chains.ChainID) *Signer {
	return &Signer{
		provider:     provider,
		account:      account,
		chainID:      chainID,
		pollInterval: constants.ReceiptPollInterval,
	}
}

var _ wallet.Signer = (*Signer)(nil)

type txArgs struct {
	From    common.Address  `json:"from"`
	To      *common.Address `json:"to,omitempty"`
	Value   *hexutil.Big    `json:"value,omitempty"`
	Data    hexutil.Bytes   `json:"data,omitempty"`
	ChainID string          `json:"chainId,omitempty"`
}

// Account implements wallet.Signer
func (s *Signer) Account() common.Address {
	return s.account
}

// ChainID implements wallet.Signer
func (s *Signer) ChainID() chains.ChainID {
	return s.chainID
}

// SendTransaction implements wallet.Signer
func (s *Signer) SendTransaction(ctx context.Context, tx *wallet.Transaction) (common.Hash, error) {
	to := tx.To
	args := txArgs{
		From: s.account,
		To:   &to,
		Data: tx.Data,
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	if n, ok := s.chainID.Numeric(); ok {
		args.ChainID = hexutil.EncodeUint64(n)
	}

	var hash common.Hash
	if err := s.provider.Request(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, wallet.ClassifyError(err)
	}
	return hash, nil
}

// CallContract implements wallet.Signer
func (s *Signer) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	args := txArgs{From: s.account, To: &to, Data: data}
	if err := s.provider.Request(ctx, &out, "eth_call", args, "latest"); err != nil {
		return nil, wallet.ClassifyError(err)
	}
	return out, nil
}

// WaitMined implements wallet.Signer
// It polls for the receipt until one is available, ctx is done or the
// wallet connection is gone. Other request failures are retried.
func (s *Signer) WaitMined(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		var raw json.RawMessage
		err := s.provider.Request(ctx, &raw, "eth_getTransactionReceipt", hash)
		if err == nil && len(raw) > 0 && string(raw) != "null" {
			receipt, _, err := chainevm.DecodeReceipt(raw)
			return receipt, err
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if connectionLost(err) {
				return nil, types.NewError(types.KindNotConnected, "wallet connection lost while waiting for "+hash.Hex(), err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// connectionLost reports whether err means the provider can never answer again
func connectionLost(err error) bool {
	if errors.Is(err, wsrpc.ErrClosed) || errors.Is(err, rpc.ErrClientQuit) {
		return true
	}
	return types.KindOf(wallet.ClassifyError(err)) == types.KindNotConnected
}

// Rebind implements wallet.Signer
func (s *Signer) Rebind(account string, chainID chains.ChainID) wallet.Signer {
	return &Signer{
		provider:     s.provider,
		account:      common.HexToAddress(account),
		chainID:      chainID,
		pollInterval: s.pollInterval,
	}
}
