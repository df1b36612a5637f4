package chains

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// Registry maps chain ids to network metadata and, optionally, to the
// chain adapters used to look up receipts on that chain.
type Registry struct {
	networks map[ChainID]NetworkDescriptor
	adapters map[ChainID]ChainAdapter
	mu       sync.RWMutex
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// NewRegistry creates a registry holding the given descriptors
func NewRegistry(descriptors ...NetworkDescriptor) *Registry {
	r := &Registry{
		networks: make(map[ChainID]NetworkDescriptor),
		adapters: make(map[ChainID]ChainAdapter),
	}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// InitGlobalRegistry initializes the process-wide registry with the built-in networks
func InitGlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry(DefaultNetworks()...)
	})
	return globalRegistry
}

// Default returns the process-wide registry, initializing it on first use
func Default() *Registry {
	return InitGlobalRegistry()
}

// ResetGlobalRegistry resets the global registry (useful for testing)
func ResetGlobalRegistry() {
	globalRegistry = nil
	globalRegistryOnce = sync.Once{}
}

// DefaultNetworks returns the networks the marketplace supports out of the box
func DefaultNetworks() []NetworkDescriptor {
	return []NetworkDescriptor{
		{ChainID: EVM(constants.ChainIDEthereum), Name: "Ethereum Mainnet", NativeSymbol: "ETH", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["1"], ExplorerURL: "https://etherscan.io", Family: FamilyEVM},
		{ChainID: EVM(constants.ChainIDPolygon), Name: "Polygon Mainnet", NativeSymbol: "MATIC", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["137"], ExplorerURL: "https://polygonscan.com", Family: FamilyEVM},
		{ChainID: EVM(constants.ChainIDBNB), Name: "BNB Chain", NativeSymbol: "BNB", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["56"], ExplorerURL: "https://bscscan.com", Family: FamilyEVM},
		{ChainID: EVM(constants.ChainIDArbitrum), Name: "Arbitrum One", NativeSymbol: "ETH", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["42161"], ExplorerURL: "https://arbiscan.io", Family: FamilyEVM},
		{ChainID: EVM(constants.ChainIDOptimism), Name: "Optimism", NativeSymbol: "ETH", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["10"], ExplorerURL: "https://optimistic.etherscan.io", Family: FamilyEVM},
		{ChainID: EVM(constants.ChainIDAurora), Name: "Aurora", NativeSymbol: "ETH", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["1313161554"], ExplorerURL: "https://explorer.aurora.dev", Family: FamilyEVM},
		{ChainID: EVM(constants.ChainIDSepolia), Name: "Sepolia", NativeSymbol: "ETH", Decimals: constants.EVMNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints["11155111"], ExplorerURL: "https://sepolia.etherscan.io", Family: FamilyEVM},
		{ChainID: constants.ChainSolana, Name: "Solana", NativeSymbol: "SOL", Decimals: constants.SolanaNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints[constants.ChainSolana], ExplorerURL: "https://explorer.solana.com", Family: FamilySolana},
		{ChainID: constants.ChainTON, Name: "TON", NativeSymbol: "TON", Decimals: constants.TONNativeDecimals, RPCURLs: constants.OfficialRPCEndpoints[constants.ChainTON], ExplorerURL: "https://tonviewer.com", Family: FamilyTON},
	}
}

// Register adds or replaces a network descriptor (idempotent)
func (r *Registry) Register(desc NetworkDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.networks[desc.ChainID] = desc
}

// Describe looks up a network. It fails with types.ErrUnknownChain when absent.
func (r *Registry) Describe(id ChainID) (NetworkDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.networks[id]
	if !ok {
		return NetworkDescriptor{}, types.NewError(types.KindUnknownChain, fmt.Sprintf("chain %s", id), nil)
	}
	return desc, nil
}

// Label returns the network name, falling back to "Chain {id}" for unknown chains
func (r *Registry) Label(id ChainID) string {
	desc, err := r.Describe(id)
	if err != nil {
		return fmt.Sprintf("Chain %s", id)
	}
	return desc.Name
}

// IsSupported checks if a network is registered
func (r *Registry) IsSupported(id ChainID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.networks[id]
	return exists
}

// Networks returns all registered descriptors. Numeric chain ids come first
// in numeric order, then symbolic ids alphabetically.
func (r *Registry) Networks() []NetworkDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	networks := make([]NetworkDescriptor, 0, len(r.networks))
	for _, d := range r.networks {
		networks = append(networks, d)
	}
	sort.Slice(networks, func(i, j int) bool {
		return chainIDLess(networks[i].ChainID, networks[j].ChainID)
	})
	return networks
}

func chainIDLess(a, b ChainID) bool {
	na, aNumeric := a.Numeric()
	nb, bNumeric := b.Numeric()
	switch {
	case aNumeric && bNumeric:
		return na < nb
	case aNumeric != bNumeric:
		return aNumeric
	default:
		return a < b
	}
}

// NetworksByFamily returns the registered descriptors of one family
func (r *Registry) NetworksByFamily(family Family) []NetworkDescriptor {
	var out []NetworkDescriptor
	for _, d := range r.Networks() {
		if d.Family == family {
			out = append(out, d)
		}
	}
	return out
}

// Unregister removes a network and its adapter (useful for testing)
func (r *Registry) Unregister(id ChainID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.networks, id)
	delete(r.adapters, id)
}

// Attach registers a chain adapter (uses adapter.ChainID() as key).
// If an adapter already exists for the chain, it will be replaced (idempotent).
// The chain must already be described.
func (r *Registry) Attach(adapter ChainAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := adapter.ChainID()
	if _, ok := r.networks[id]; !ok {
		return types.NewError(types.KindUnknownChain, fmt.Sprintf("cannot attach adapter for chain %s", id), nil)
	}
	r.adapters[id] = adapter
	return nil
}

// Adapter retrieves the chain adapter for a chain
func (r *Registry) Adapter(id ChainID) (ChainAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[id]
	if !exists {
		return nil, types.NewError(types.KindUnknownChain, fmt.Sprintf("no adapter registered for chain %s", id), nil)
	}
	return adapter, nil
}
