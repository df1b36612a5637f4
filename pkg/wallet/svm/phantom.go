// Package svm implements the wallet adapter for Solana wallets. These wallets
// hand back a public key only; transactions are not signed through them here.
package svm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// Wallet is a Solana wallet endpoint in the style of Phantom's window.solana
type Wallet interface {
	// Connect asks for access and returns the base58 public key
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error

	// On subscribes to "accountChanged" or "disconnect"
	On(event string, fn func(json.RawMessage)) func()
}

// Lookup returns the wallet, or nil when it is absent
type Lookup func() Wallet

// Adapter connects Solana wallets
type Adapter struct {
	id       string
	registry *chains.Registry
	lookup   Lookup
	rpcURL   string

	mu        sync.Mutex
	wallet    Wallet
	listeners wallet.Listeners
	unsubs    []func()
}

// Option configures an Adapter
type Option func(*Adapter)

// WithRPCEndpoint overrides the endpoint used for balance reads
func WithRPCEndpoint(url string) Option {
	return func(a *Adapter) {
		a.rpcURL = url
	}
}

// NewAdapter creates a Solana wallet adapter
func NewAdapter(id string, registry *chains.Registry, lookup Lookup, opts ...Option) *Adapter {
	a := &Adapter{
		id:       id,
		registry: registry,
		lookup:   lookup,
	}
	if desc, err := registry.Describe(constants.ChainSolana); err == nil {
		a.rpcURL = desc.RPCURL()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var (
	_ wallet.Adapter       = (*Adapter)(nil)
	_ wallet.BalanceReader = (*Adapter)(nil)
	_ wallet.Detector      = (*Adapter)(nil)
)

// ID implements wallet.Adapter
func (a *Adapter) ID() string {
	return a.id
}

// Family implements wallet.Adapter
func (a *Adapter) Family() chains.Family {
	return chains.FamilySolana
}

// SupportedChains implements wallet.Adapter
func (a *Adapter) SupportedChains() []chains.NetworkDescriptor {
	return a.registry.NetworksByFamily(chains.FamilySolana)
}

// Installed implements wallet.Detector
func (a *Adapter) Installed() bool {
	return a.lookup != nil && a.lookup() != nil
}

// Connect implements wallet.Adapter
func (a *Adapter) Connect(ctx context.Context) (*wallet.Connection, error) {
	if !a.Installed() {
		return nil, types.NewError(types.KindWalletNotInstalled, a.id, nil)
	}
	w := a.lookup()

	a.mu.Lock()
	a.detachLocked()
	a.wallet = w
	a.attachLocked()
	a.mu.Unlock()

	key, err := w.Connect(ctx)
	if err != nil {
		a.release()
		return nil, wallet.ClassifyError(err)
	}

	pubkey, err := solana.PublicKeyFromBase58(key)
	if err != nil {
		a.release()
		return nil, types.NewError(types.KindProviderError, fmt.Sprintf("wallet returned an invalid public key %q", key), err)
	}

	return &wallet.Connection{
		Address: pubkey.String(),
		ChainID: constants.ChainSolana,
	}, nil
}

// Disconnect implements wallet.Adapter
func (a *Adapter) Disconnect(ctx context.Context) error {
	w := a.release()
	if w == nil {
		return nil
	}
	return w.Disconnect(ctx)
}

// Listen implements wallet.Adapter
func (a *Adapter) Listen(l wallet.Listeners) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.detachLocked()
	a.listeners = l
	if a.wallet != nil {
		a.attachLocked()
	}

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.detachLocked()
		a.listeners = wallet.Listeners{}
	}
}

// Balance implements wallet.BalanceReader. The result is in lamports.
func (a *Adapter) Balance(ctx context.Context, address string) (*big.Int, error) {
	if a.rpcURL == "" {
		return nil, fmt.Errorf("no RPC endpoint configured for %s", constants.ChainSolana)
	}
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid public key %q: %w", address, err)
	}

	result, err := rpc.New(a.rpcURL).GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return new(big.Int).SetUint64(result.Value), nil
}

func (a *Adapter) release() Wallet {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.detachLocked()
	w := a.wallet
	a.wallet = nil
	return w
}

func (a *Adapter) attachLocked() {
	w, l := a.wallet, a.listeners

	if l.AccountsChanged != nil {
		a.unsubs = append(a.unsubs, w.On("accountChanged", func(raw json.RawMessage) {
			// A null key means the wallet switched to an account that has not
			// approved this site.
			var key *string
			if err := json.Unmarshal(raw, &key); err != nil {
				return
			}
			if key == nil {
				l.AccountsChanged(nil)
				return
			}
			pubkey, err := solana.PublicKeyFromBase58(*key)
			if err != nil {
				return
			}
			l.AccountsChanged([]string{pubkey.String()})
		}))
	}
	if l.Disconnected != nil {
		a.unsubs = append(a.unsubs, w.On("disconnect", func(json.RawMessage) {
			l.Disconnected()
		}))
	}
}

func (a *Adapter) detachLocked() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
}
