package evm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sigweihq/beatmarket/pkg/chains"
)

// InitEVMChains attaches an adapter for every EVM network described in the
// registry, using the descriptor's RPC URLs.
func InitEVMChains(logger *slog.Logger, registry *chains.Registry) error {
	endpoints := make(map[chains.ChainID][]string)
	for _, desc := range registry.NetworksByFamily(chains.FamilyEVM) {
		endpoints[desc.ChainID] = desc.RPCURLs
	}
	return InitEVMChainsWithEndpoints(logger, registry, endpoints)
}

// InitEVMChainsWithEndpoints attaches EVM adapters with user-provided endpoints.
// A network with no endpoints falls back to the registry's RPC URLs.
func InitEVMChainsWithEndpoints(logger *slog.Logger, registry *chains.Registry, endpoints map[chains.ChainID][]string) error {
	if logger == nil {
		logger = slog.Default()
	}

	for chainID, networkEndpoints := range endpoints {
		adapter, err := NewEVMAdapter(registry, chainID, networkEndpoints)
		if err != nil {
			logger.Warn("failed to create EVM adapter", "chain", chainID, "error", err)
			continue
		}
		if len(adapter.rpc.endpoints) == 0 {
			logger.Warn("no endpoints available for network", "chain", chainID)
			continue
		}

		if err := registry.Attach(adapter); err != nil {
			logger.Warn("failed to attach EVM adapter", "chain", chainID, "error", err)
		}
	}

	return nil
}

// PrioritizeHealthy reorders endpoints so healthy ones come first, keeping the
// configured order within each group. Checks run concurrently.
func PrioritizeHealthy(ctx context.Context, client *RPCClient) []string {
	endpoints := client.Endpoints()
	healthy := make([]bool, len(endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			healthy[i] = client.IsHealthy(ctx, endpoint)
		}(i, endpoint)
	}
	wg.Wait()

	ordered := make([]string, 0, len(endpoints))
	for i, endpoint := range endpoints {
		if healthy[i] {
			ordered = append(ordered, endpoint)
		}
	}
	for i, endpoint := range endpoints {
		if !healthy[i] {
			ordered = append(ordered, endpoint)
		}
	}
	return ordered
}
