package svm

import (
	"fmt"
	"log/slog"

	"github.com/sigweihq/beatmarket/pkg/chains"
)

// InitSVMChains attaches an adapter for every Solana network in the registry
// using the descriptor's RPC URLs.
func InitSVMChains(logger *slog.Logger, registry *chains.Registry) error {
	endpoints := make(map[chains.ChainID][]string)
	for _, desc := range registry.NetworksByFamily(chains.FamilySolana) {
		endpoints[desc.ChainID] = desc.RPCURLs
	}
	return InitSVMChainsWithEndpoints(logger, registry, endpoints)
}

// InitSVMChainsWithEndpoints attaches SVM adapters with user-provided endpoints.
// If a specific network has no endpoints, falls back to the registry's RPC URLs.
func InitSVMChainsWithEndpoints(logger *slog.Logger, registry *chains.Registry, endpoints map[chains.ChainID][]string) error {
	if logger == nil {
		logger = slog.Default()
	}

	for chainID, eps := range endpoints {
		desc, err := registry.Describe(chainID)
		if err != nil {
			return fmt.Errorf("failed to attach SVM adapter for %s: %w", chainID, err)
		}
		if desc.Family != chains.FamilySolana {
			return fmt.Errorf("chain %s is not a Solana network", chainID)
		}

		if len(eps) == 0 {
			if len(desc.RPCURLs) == 0 {
				logger.Warn("no endpoints provided for SVM network", "chain", chainID)
				continue
			}
			eps = desc.RPCURLs
			logger.Info("using registry endpoints for SVM network", "chain", chainID)
		}

		if err := registry.Attach(NewSVMAdapter(chainID, eps)); err != nil {
			return fmt.Errorf("failed to attach SVM adapter for %s: %w", chainID, err)
		}
	}

	return nil
}
