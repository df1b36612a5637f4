// Package bridge implements wallets embedded in a host mobile app, such as
// the Telegram wallet or Tonkeeper, reached through the app's bridge.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/transport/wsrpc"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// Bridge is the host app's message channel. *wsrpc.Peer satisfies it.
type Bridge interface {
	Call(ctx context.Context, method string, params any, result any) error
	On(method string, fn wsrpc.NotificationHandler) func()
}

// Lookup returns the bridge, or nil outside the host app
type Lookup func() Bridge

// Response is the structured answer to a connect request
type Response struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

// Decoder turns the raw connect reply into a Response
type Decoder func(raw json.RawMessage) (Response, error)

// DecodeResponse reads the {address, chain} object
func DecodeResponse(raw json.RawMessage) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// DecodeAccounts reads an accounts array and takes the first entry. The
// chain is left empty so the adapter's default applies.
func DecodeAccounts(raw json.RawMessage) (Response, error) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return Response{}, err
	}
	if len(accounts) == 0 {
		return Response{}, nil
	}
	return Response{Address: accounts[0]}, nil
}

// Adapter connects through a mobile bridge
type Adapter struct {
	id           string
	registry     *chains.Registry
	lookup       Lookup
	method       string
	decode       Decoder
	defaultChain chains.ChainID

	mu        sync.Mutex
	bridge    Bridge
	listeners wallet.Listeners
	unsubs    []func()
}

// Option configures an Adapter
type Option func(*Adapter)

// WithConnectMethod sets the bridge method that starts a connection
func WithConnectMethod(method string) Option {
	return func(a *Adapter) {
		a.method = method
	}
}

// WithDecoder sets how the connect reply is read
func WithDecoder(decode Decoder) Option {
	return func(a *Adapter) {
		a.decode = decode
	}
}

// WithDefaultChain sets the chain assumed when the response names none
func WithDefaultChain(id chains.ChainID) Option {
	return func(a *Adapter) {
		a.defaultChain = id
	}
}

// NewAdapter creates a bridge wallet adapter
func NewAdapter(id string, registry *chains.Registry, lookup Lookup, opts ...Option) *Adapter {
	a := &Adapter{
		id:           id,
		registry:     registry,
		lookup:       lookup,
		method:       "connect_wallet",
		decode:       DecodeResponse,
		defaultChain: constants.ChainTON,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewTelegram creates the adapter for the Telegram in-app wallet
func NewTelegram(registry *chains.Registry, lookup Lookup) *Adapter {
	return NewAdapter(constants.ProviderTelegram, registry, lookup, WithConnectMethod("connect_wallet"))
}

// NewTonkeeper creates the adapter for Tonkeeper
func NewTonkeeper(registry *chains.Registry, lookup Lookup) *Adapter {
	return NewAdapter(constants.ProviderTonkeeper, registry, lookup,
		WithConnectMethod("ton_requestAccounts"),
		WithDecoder(DecodeAccounts),
		WithDefaultChain(constants.ChainTON),
	)
}

var (
	_ wallet.Adapter  = (*Adapter)(nil)
	_ wallet.Detector = (*Adapter)(nil)
)

// ID implements wallet.Adapter
func (a *Adapter) ID() string {
	return a.id
}

// Family implements wallet.Adapter
func (a *Adapter) Family() chains.Family {
	desc, err := a.registry.Describe(a.defaultChain)
	if err != nil {
		return chains.FamilyTON
	}
	return desc.Family
}

// SupportedChains implements wallet.Adapter
func (a *Adapter) SupportedChains() []chains.NetworkDescriptor {
	return a.registry.NetworksByFamily(a.Family())
}

// Installed implements wallet.Detector
func (a *Adapter) Installed() bool {
	return a.lookup != nil && a.lookup() != nil
}

// Connect implements wallet.Adapter
func (a *Adapter) Connect(ctx context.Context) (*wallet.Connection, error) {
	if !a.Installed() {
		return nil, types.NewError(types.KindBridgeUnavailable, a.id, nil)
	}
	b := a.lookup()

	a.mu.Lock()
	a.detachLocked()
	a.bridge = b
	a.attachLocked()
	a.mu.Unlock()

	var raw json.RawMessage
	if err := b.Call(ctx, a.method, nil, &raw); err != nil {
		a.release()
		return nil, wallet.ClassifyError(err)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	resp, err := a.decode(raw)
	if err != nil {
		a.release()
		return nil, types.NewError(types.KindProviderError, fmt.Sprintf("%s returned an unreadable reply", a.id), err)
	}

	address := strings.TrimSpace(resp.Address)
	if address == "" {
		a.release()
		return nil, types.NewError(types.KindProviderError, fmt.Sprintf("%s returned no address", a.id), nil)
	}

	chainID := a.defaultChain
	if resp.Chain != "" {
		chainID = chains.ChainID(resp.Chain)
	}
	if !a.registry.IsSupported(chainID) {
		a.release()
		return nil, types.NewError(types.KindUnknownChain, fmt.Sprintf("chain %s", chainID), nil)
	}

	return &wallet.Connection{
		Address: address,
		ChainID: chainID,
	}, nil
}

// Disconnect implements wallet.Adapter
// The bridge belongs to the host app and stays open.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.release()
	return nil
}

// Listen implements wallet.Adapter
func (a *Adapter) Listen(l wallet.Listeners) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.detachLocked()
	a.listeners = l
	if a.bridge != nil {
		a.attachLocked()
	}

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.detachLocked()
		a.listeners = wallet.Listeners{}
	}
}

func (a *Adapter) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detachLocked()
	a.bridge = nil
}

func (a *Adapter) attachLocked() {
	b, l := a.bridge, a.listeners

	if l.AccountsChanged != nil {
		a.unsubs = append(a.unsubs, b.On("wallet_accountChanged", func(raw json.RawMessage) {
			var resp Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				return
			}
			if resp.Address == "" {
				l.AccountsChanged(nil)
				return
			}
			l.AccountsChanged([]string{resp.Address})
		}))
	}
	if l.Disconnected != nil {
		a.unsubs = append(a.unsubs, b.On("wallet_disconnected", func(json.RawMessage) {
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
