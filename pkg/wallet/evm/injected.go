package evm

import (
	"context"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// Lookup returns the wallet's provider, or nil when the wallet is absent.
// It must return an untyped nil, not a nil pointer.
type Lookup func() Provider

// Injected connects to a wallet whose provider is already present in the
// host environment, such as a browser extension.
type Injected struct {
	connector
	lookup Lookup
}

// NewInjected creates an injected wallet adapter
func NewInjected(id string, registry *chains.Registry, lookup Lookup) *Injected {
	return &Injected{
		connector: connector{id: id, registry: registry},
		lookup:    lookup,
	}
}

var (
	_ wallet.Adapter         = (*Injected)(nil)
	_ wallet.NetworkSwitcher = (*Injected)(nil)
	_ wallet.BalanceReader   = (*Injected)(nil)
	_ wallet.Detector        = (*Injected)(nil)
)

// Installed implements wallet.Detector
func (i *Injected) Installed() bool {
	return i.lookup != nil && i.lookup() != nil
}

// Connect implements wallet.Adapter
func (i *Injected) Connect(ctx context.Context) (*wallet.Connection, error) {
	if !i.Installed() {
		return nil, types.NewError(types.KindWalletNotInstalled, i.id, nil)
	}
	return i.connect(ctx, i.lookup())
}

// Disconnect implements wallet.Adapter
// The provider belongs to the host, so it is only forgotten, not closed.
func (i *Injected) Disconnect(ctx context.Context) error {
	i.release()
	return nil
}
