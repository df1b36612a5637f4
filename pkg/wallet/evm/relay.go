package evm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// Relay negotiates sessions with wallets running somewhere else, typically
// a phone that scans a pairing code.
type Relay interface {
	Propose(ctx context.Context, chainIDs []chains.ChainID) (Proposal, error)
}

// Proposal is a pending pairing
type Proposal interface {
	// URI is the pairing link to show the user
	URI() string

	// Wait blocks until the wallet answers. A declined pairing fails with
	// types.ErrPairingRejected.
	Wait(ctx context.Context) (Provider, error)
}

// RelayEVM connects through a Relay, then behaves like an injected wallet
type RelayEVM struct {
	connector
	relay   Relay
	timeout time.Duration
	prompt  func(uri string)
	logger  *slog.Logger
}

// RelayOption configures a RelayEVM
type RelayOption func(*RelayEVM)

// WithPairingTimeout bounds how long the user has to approve the pairing
func WithPairingTimeout(d time.Duration) RelayOption {
	return func(r *RelayEVM) {
		r.timeout = d
	}
}

// WithPrompt sets the callback that shows the pairing URI to the user
func WithPrompt(fn func(uri string)) RelayOption {
	return func(r *RelayEVM) {
		r.prompt = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *RelayEVM) {
		r.logger = logger
	}
}

// NewRelay creates a relay wallet adapter
func NewRelay(id string, registry *chains.Registry, relay Relay, opts ...RelayOption) *RelayEVM {
	r := &RelayEVM{
		connector: connector{id: id, registry: registry},
		relay:     relay,
		timeout:   constants.DefaultPairingTimeout,
		prompt:    func(string) {},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ wallet.Adapter         = (*RelayEVM)(nil)
	_ wallet.NetworkSwitcher = (*RelayEVM)(nil)
	_ wallet.BalanceReader   = (*RelayEVM)(nil)
)

// Connect implements wallet.Adapter
func (r *RelayEVM) Connect(ctx context.Context) (*wallet.Connection, error) {
	if r.relay == nil {
		return nil, types.NewError(types.KindWalletNotInstalled, r.id+": no relay configured", nil)
	}

	supported := r.SupportedChains()
	chainIDs := make([]chains.ChainID, 0, len(supported))
	for _, d := range supported {
		chainIDs = append(chainIDs, d.ChainID)
	}

	proposal, err := r.relay.Propose(ctx, chainIDs)
	if err != nil {
		return nil, wallet.ClassifyError(err)
	}
	r.logger.Info("waiting for wallet pairing", "provider", r.id, "timeout", r.timeout)
	r.prompt(proposal.URI())

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	provider, err := proposal.Wait(waitCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, types.NewError(types.KindPairingTimeout, r.id, err)
		}
		err = wallet.ClassifyError(err)
		if errors.Is(err, types.ErrUserRejected) {
			return nil, types.NewError(types.KindPairingRejected, r.id, err)
		}
		return nil, err
	}

	conn, err := r.connect(ctx, provider)
	if err != nil {
		closeProvider(provider)
		return nil, err
	}
	return conn, nil
}

// Disconnect implements wallet.Adapter
func (r *RelayEVM) Disconnect(ctx context.Context) error {
	closeProvider(r.release())
	return nil
}

func closeProvider(p Provider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}
