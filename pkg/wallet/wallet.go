// Package wallet holds the wallet session state machine and the capability
// interfaces every wallet provider implements.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/beatmarket/pkg/chains"
)

// State of a wallet session
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Identity is the normalized view of a connected wallet. A session replaces
// it wholesale and never exposes a partially filled value.
type Identity struct {
	ProviderID string         `json:"providerId"`
	Address    string         `json:"address"`
	ChainID    chains.ChainID `json:"chainId"`
	Balance    string         `json:"balance"`
}

// IsZero reports whether the identity is the empty, disconnected value
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// Connection is what an adapter hands back from a successful connect
type Connection struct {
	Address string
	ChainID chains.ChainID
	// Signer is nil for address-only wallets
	Signer Signer
}

// Listeners receive provider notifications. Nil fields are ignored.
type Listeners struct {
	AccountsChanged func(accounts []string)
	ChainChanged    func(chainID chains.ChainID)
	Disconnected    func()
}

// Adapter connects to one wallet family
type Adapter interface {
	// ID returns the provider identifier, e.g. "metamask"
	ID() string

	// Family returns the chain family the wallet speaks
	Family() chains.Family

	// SupportedChains returns the networks this wallet can be used on
	SupportedChains() []chains.NetworkDescriptor

	// Connect negotiates with the wallet. It is never retried by the session.
	Connect(ctx context.Context) (*Connection, error)

	// Disconnect releases the wallet connection
	Disconnect(ctx context.Context) error

	// Listen registers notification callbacks, including ones that arrive
	// while Connect is still running. The returned func unsubscribes.
	Listen(l Listeners) func()
}

// NetworkSwitcher is implemented by wallets that can change their active network
type NetworkSwitcher interface {
	// SwitchChain fails with types.ErrUnknownChain when the wallet lacks the network
	SwitchChain(ctx context.Context, chainID chains.ChainID) error
	AddChain(ctx context.Context, desc chains.NetworkDescriptor) error
}

// BalanceReader is implemented by wallets that can report a native balance
type BalanceReader interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
}

// Detector is implemented by wallets whose presence can be probed
type Detector interface {
	Installed() bool
}

// Transaction is an unsigned call for the wallet to sign and broadcast
type Transaction struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Signer authorizes and broadcasts transactions for one account on one chain
type Signer interface {
	Account() common.Address
	ChainID() chains.ChainID

	// SendTransaction asks the wallet to sign and broadcast tx
	SendTransaction(ctx context.Context, tx *Transaction) (common.Hash, error)

	// CallContract runs a read-only call against the latest block
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// WaitMined blocks until the transaction is mined or ctx is done
	WaitMined(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)

	// Rebind returns a signer for a new account or chain on the same wallet
	Rebind(account string, chainID chains.ChainID) Signer
}

// EventKind names a session change
type EventKind string

const (
	EventConnecting     EventKind = "connecting"
	EventConnected      EventKind = "connected"
	EventConnectFailed  EventKind = "connect_failed"
	EventDisconnected   EventKind = "disconnected"
	EventAccountChanged EventKind = "account_changed"
	EventChainChanged   EventKind = "chain_changed"
	EventBalanceChanged EventKind = "balance_changed"
)

// Event is delivered to session observers after every transition
type Event struct {
	Kind       EventKind
	State      State
	Identity   Identity
	Generation uint64
}
