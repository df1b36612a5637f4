package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
)

// connector holds the EIP-1193 handshake and event wiring shared by the
// injected and relay adapters.
type connector struct {
	id       string
	registry *chains.Registry

	mu        sync.Mutex
	listeners wallet.Listeners
	provider  Provider
	unsubs    []func()
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func (c *connector) ID() string {
	return c.id
}

func (c *connector) Family() chains.Family {
	return chains.FamilyEVM
}

func (c *connector) SupportedChains() []chains.NetworkDescriptor {
	return c.registry.NetworksByFamily(chains.FamilyEVM)
}

func (c *connector) Listen(l wallet.Listeners) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detachLocked()
	c.listeners = l
	if c.provider != nil {
		c.attachLocked()
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.detachLocked()
		c.listeners = wallet.Listeners{}
	}
}

// connect runs eth_requestAccounts then eth_chainId against provider.
// Events are wired before the handshake so a disconnect during it is seen.
func (c *connector) connect(ctx context.Context, provider Provider) (*wallet.Connection, error) {
	c.mu.Lock()
	c.detachLocked()
	c.provider = provider
	c.attachLocked()
	c.mu.Unlock()

	var accounts []string
	if err := provider.Request(ctx, &accounts, "eth_requestAccounts"); err != nil {
		c.release()
		return nil, wallet.ClassifyError(err)
	}
	if len(accounts) == 0 || !common.IsHexAddress(accounts[0]) {
		c.release()
		return nil, types.NewError(types.KindProviderError, "wallet returned no usable account", nil)
	}

	var chainID hexutil.Uint64
	if err := provider.Request(ctx, &chainID, "eth_chainId"); err != nil {
		c.release()
		return nil, wallet.ClassifyError(err)
	}

	account := common.HexToAddress(accounts[0])
	id := chains.EVM(uint64(chainID))
	return &wallet.Connection{
		Address: account.Hex(),
		ChainID: id,
		Signer:  NewSigner(provider, account, id),
	}, nil
}

// release forgets the provider and returns it
func (c *connector) release() Provider {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detachLocked()
	p := c.provider
	c.provider = nil
	return p
}

func (c *connector) current() Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func (c *connector) SwitchChain(ctx context.Context, chainID chains.ChainID) error {
	provider := c.current()
	if provider == nil {
		return types.ErrNotConnected
	}
	n, ok := chainID.Numeric()
	if !ok {
		return types.NewError(types.KindUnknownChain, "not an EVM network: "+chainID.String(), nil)
	}

	err := provider.Request(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: hexutil.EncodeUint64(n)})
	return wallet.ClassifyError(err)
}

func (c *connector) AddChain(ctx context.Context, desc chains.NetworkDescriptor) error {
	provider := c.current()
	if provider == nil {
		return types.ErrNotConnected
	}
	n, ok := desc.ChainID.Numeric()
	if !ok {
		return types.NewError(types.KindUnknownChain, "not an EVM network: "+desc.ChainID.String(), nil)
	}

	params := addChainParams{
		ChainID:   hexutil.EncodeUint64(n),
		ChainName: desc.Name,
		NativeCurrency: nativeCurrency{
			Name:     desc.NativeSymbol,
			Symbol:   desc.NativeSymbol,
			Decimals: desc.Decimals,
		},
		RPCURLs: desc.RPCURLs,
	}
	if desc.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{desc.ExplorerURL}
	}

	return wallet.ClassifyError(provider.Request(ctx, nil, "wallet_addEthereumChain", params))
}

func (c *connector) Balance(ctx context.Context, address string) (*big.Int, error) {
	provider := c.current()
	if provider == nil {
		return nil, types.ErrNotConnected
	}

	var balance hexutil.Big
	if err := provider.Request(ctx, &balance, "eth_getBalance", address, "latest"); err != nil {
		return nil, wallet.ClassifyError(err)
	}
	return balance.ToInt(), nil
}

func (c *connector) attachLocked() {
	p, l := c.provider, c.listeners

	if l.AccountsChanged != nil {
		c.unsubs = append(c.unsubs, p.On("accountsChanged", func(raw json.RawMessage) {
			var accounts []string
			if !decodeEventArg(raw, &accounts) {
				return
			}
			for i, a := range accounts {
				if common.IsHexAddress(a) {
					accounts[i] = common.HexToAddress(a).Hex()
				}
			}
			l.AccountsChanged(accounts)
		}))
	}
	if l.ChainChanged != nil {
		c.unsubs = append(c.unsubs, p.On("chainChanged", func(raw json.RawMessage) {
			var hex string
			if !decodeEventArg(raw, &hex) {
				return
			}
			n, err := hexutil.DecodeUint64(hex)
			if err != nil {
				return
			}
			l.ChainChanged(chains.EVM(n))
		}))
	}
	if l.Disconnected != nil {
		c.unsubs = append(c.unsubs, p.On("disconnect", func(json.RawMessage) {
			l.Disconnected()
		}))
	}
}

func (c *connector) detachLocked() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}

// decodeEventArg decodes an event payload sent either bare or as the single
// element of a params array.
func decodeEventArg(raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err == nil {
		return true
	}
	var wrapped []json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil || len(wrapped) != 1 {
		return false
	}
	return json.Unmarshal(wrapped[0], v) == nil
}
