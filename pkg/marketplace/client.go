// Package marketplace calls the BeatNFT contract through the connected wallet.
package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/metrics"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/utils"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// Client is bound to the session generation it was created in. Once the
// session changes account, chain or connection, every call fails with
// types.ErrNotConnected and a new Client must be built.
type Client struct {
	session        *wallet.Session
	contract       common.Address
	registry       *chains.Registry
	generation     uint64
	receiptTimeout time.Duration
	logger         *slog.Logger
	metrics        metrics.Recorder
}

// Option configures a Client
type Option func(*Client)

// WithReceiptTimeout bounds how long a call waits for its transaction to be
// mined. The broadcast transaction is not cancelled when the wait gives up.
// Zero waits until the caller's context is done.
func WithReceiptTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.receiptTimeout = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for the contract at contractAddress
func New(session *wallet.Session, contractAddress string, registry *chains.Registry, opts ...Option) *Client {
	c := &Client{
		session:    session,
		contract:   common.HexToAddress(contractAddress),
		registry:   registry,
		generation: session.Generation(),
		logger:     slog.Default(),
		metrics:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result describes a mined marketplace transaction
type Result struct {
	TxHash      string
	BlockNumber uint64
	// TokenID is set for mints when the contract emitted BeatMinted
	TokenID *big.Int
}

// Mint creates a beat token listed at price, a decimal in the native currency
func (c *Client) Mint(ctx context.Context, metadataURI, price, audioHash string) (*Result, error) {
	signer, desc, err := c.bind()
	if err != nil {
		return nil, err
	}
	wei, err := utils.ParseUnits(price, desc.Decimals)
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack("mintBeat", metadataURI, wei, audioHash)
	if err != nil {
		return nil, fmt.Errorf("failed to pack mintBeat: %w", err)
	}

	receipt, err := c.transact(ctx, signer, "mintBeat", nil, data)
	if err != nil {
		return nil, err
	}
	return &Result{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: blockNumber(receipt),
		TokenID:     mintedTokenID(receipt, c.contract),
	}, nil
}

// Purchase buys tokenID, sending price converted to the chain's smallest unit
func (c *Client) Purchase(ctx context.Context, tokenID *big.Int, price string) (*Result, error) {
	signer, desc, err := c.bind()
	if err != nil {
		return nil, err
	}
	value, err := utils.ParseUnits(price, desc.Decimals)
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack("purchaseBeat", tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack purchaseBeat: %w", err)
	}

	receipt, err := c.transact(ctx, signer, "purchaseBeat", value, data)
	if err != nil {
		return nil, err
	}
	return &Result{TxHash: receipt.TxHash.Hex(), BlockNumber: blockNumber(receipt)}, nil
}

// List puts tokenID up for sale at price
func (c *Client) List(ctx context.Context, tokenID *big.Int, price string) (*Result, error) {
	signer, desc, err := c.bind()
	if err != nil {
		return nil, err
	}
	wei, err := utils.ParseUnits(price, desc.Decimals)
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack("listBeat", tokenID, wei)
	if err != nil {
		return nil, fmt.Errorf("failed to pack listBeat: %w", err)
	}

	receipt, err := c.transact(ctx, signer, "listBeat", nil, data)
	if err != nil {
		return nil, err
	}
	return &Result{TxHash: receipt.TxHash.Hex(), BlockNumber: blockNumber(receipt)}, nil
}

// ReadBeat returns the contract's view of tokenID
func (c *Client) ReadBeat(ctx context.Context, tokenID *big.Int) (*types.BeatOnChainView, error) {
	signer, _, err := c.bind()
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack("getBeat", tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getBeat: %w", err)
	}

	out, err := signer.CallContract(ctx, c.contract, data)
	if err != nil {
		return nil, wallet.ClassifyError(err)
	}
	return decodeBeat(tokenID, out)
}

// bind resolves the session's signer for this client's generation. The
// signer is never stored on the client.
func (c *Client) bind() (wallet.Signer, chains.NetworkDescriptor, error) {
	signer, err := c.session.Signer(c.generation)
	if err != nil {
		return nil, chains.NetworkDescriptor{}, err
	}
	desc, err := c.registry.Describe(signer.ChainID())
	if err != nil {
		return nil, chains.NetworkDescriptor{}, err
	}
	return signer, desc, nil
}

func (c *Client) transact(ctx context.Context, signer wallet.Signer, method string, value *big.Int, data []byte) (*ethtypes.Receipt, error) {
	chain := signer.ChainID().String()
	start := time.Now()

	hash, err := signer.SendTransaction(ctx, &wallet.Transaction{
		To:    c.contract,
		Value: value,
		Data:  data,
	})
	if err != nil {
		err = wallet.ClassifyError(err)
		c.metrics.IncCounter(metrics.TransactionSent, map[string]string{"chain": chain, "result": string(types.KindOf(err))})
		c.logger.Warn("transaction not sent", "method", method, "chain", chain, "error", err)
		return nil, err
	}
	c.metrics.IncCounter(metrics.TransactionSent, map[string]string{"chain": chain, "result": "sent"})
	c.logger.Info("transaction sent", "method", method, "chain", chain, "tx_hash", hash.Hex())

	waitCtx := ctx
	if c.receiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.receiptTimeout)
		defer cancel()
	}

	receipt, err := signer.WaitMined(waitCtx, hash)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), err)
	}
	c.metrics.ObserveLatency(metrics.TransactionMined, time.Since(start), map[string]string{"chain": chain})

	if receipt.TxHash == (common.Hash{}) {
		receipt.TxHash = hash
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, types.NewError(types.KindReverted, fmt.Sprintf("%s transaction %s reverted", method, hash.Hex()), nil)
	}
	return receipt, nil
}

func blockNumber(receipt *ethtypes.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
