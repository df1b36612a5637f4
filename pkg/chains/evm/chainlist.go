package evm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/utils"
)

// ChainlistURL serves community RPC endpoints for every EVM chain
const ChainlistURL = "https://chainlist.org/rpcs.json"

// ChainlistEntry is a chain entry from chainlist.org/rpcs.json
type ChainlistEntry struct {
	ChainID uint64         `json:"chainId"`
	Name    string         `json:"name"`
	RPC     []ChainlistRPC `json:"rpc"`
}

// ChainlistRPC is an RPC endpoint entry
type ChainlistRPC struct {
	URL      string `json:"url"`
	Tracking string `json:"tracking,omitempty"`
}

// FetchChainlist downloads the chainlist catalogue from url
func FetchChainlist(ctx context.Context, client *http.Client, url string) ([]ChainlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	entries, err := utils.MakeJSONRequest[[]ChainlistEntry](ctx, client, http.MethodGet, url, nil, nil, "chainlist")
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// MergeChainlist returns failover endpoints for every EVM network in the
// registry: the descriptor's official URLs first, then the chainlist ones.
func MergeChainlist(registry *chains.Registry, entries []ChainlistEntry) map[chains.ChainID][]string {
	extra := make(map[chains.ChainID][]string, len(entries))
	for _, entry := range entries {
		id := chains.EVM(entry.ChainID)
		extra[id] = append(extra[id], extractHTTPSRPCs(entry.RPC)...)
	}

	endpoints := make(map[chains.ChainID][]string)
	for _, desc := range registry.NetworksByFamily(chains.FamilyEVM) {
		seen := make(map[string]bool)
		var merged []string
		for _, url := range append(append([]string{}, desc.RPCURLs...), extra[desc.ChainID]...) {
			url = strings.TrimRight(url, "/")
			if seen[url] {
				continue
			}
			seen[url] = true
			merged = append(merged, url)
		}
		endpoints[desc.ChainID] = merged
	}
	return endpoints
}

// DiscoverEndpoints merges chainlist endpoints into the registry's EVM
// networks. If chainlist cannot be fetched the official URLs are used alone.
func DiscoverEndpoints(ctx context.Context, logger *slog.Logger, registry *chains.Registry, client *http.Client, url string) map[chains.ChainID][]string {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := FetchChainlist(ctx, client, url)
	if err != nil {
		logger.Warn("failed to fetch chain data from chainlist, using official endpoints only", "error", err)
		entries = nil
	}

	endpoints := MergeChainlist(registry, entries)
	for id, eps := range endpoints {
		logger.Debug("discovered endpoints", "chain", id, "count", len(eps))
	}
	return endpoints
}

// extractHTTPSRPCs keeps HTTPS URLs that are not templated
func extractHTTPSRPCs(entries []ChainlistRPC) []string {
	var urls []string
	for _, rpc := range entries {
		if strings.HasPrefix(rpc.URL, "https://") && !strings.Contains(rpc.URL, "${") {
			urls = append(urls, rpc.URL)
		}
	}
	return urls
}
