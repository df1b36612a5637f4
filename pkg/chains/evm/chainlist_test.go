package evm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainlistBody = `[
	{"chainId": 137, "name": "Polygon Mainnet", "rpc": [
		{"url": "https://polygon-rpc.com/"},
		{"url": "https://polygon.llamarpc.com", "tracking": "none"},
		{"url": "wss://polygon.drpc.org"},
		{"url": "https://polygon-mainnet.infura.io/v3/${INFURA_API_KEY}"}
	]},
	{"chainId": 424242, "name": "Not Registered", "rpc": [{"url": "https://example.invalid"}]}
]`

func TestExtractHTTPSRPCs(t *testing.T) {
	urls := extractHTTPSRPCs([]ChainlistRPC{
		{URL: "https://a.example"},
		{URL: "http://b.example"},
		{URL: "wss://c.example"},
		{URL: "https://d.example/${KEY}"},
	})
	assert.Equal(t, []string{"https://a.example"}, urls)
}

func TestDiscoverEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chainlistBody))
	}))
	defer server.Close()

	registry := chains.NewRegistry(chains.DefaultNetworks()...)
	endpoints := DiscoverEndpoints(context.Background(), nil, registry, server.Client(), server.URL)

	polygon, err := registry.Describe(chains.EVM(137))
	require.NoError(t, err)
	got := endpoints[chains.EVM(137)]
	require.NotEmpty(t, got)
	assert.Equal(t, polygon.RPCURL(), got[0])
	assert.Contains(t, got, "https://polygon.llamarpc.com")
	assert.NotContains(t, got, "wss://polygon.drpc.org")

	_, ok := endpoints[chains.EVM(424242)]
	assert.False(t, ok)
	assert.Len(t, endpoints, len(registry.NetworksByFamily(chains.FamilyEVM)))
}

func TestDiscoverEndpointsFallsBackToOfficial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	registry := chains.NewRegistry(chains.DefaultNetworks()...)
	endpoints := DiscoverEndpoints(context.Background(), nil, registry, server.Client(), server.URL)

	for _, desc := range registry.NetworksByFamily(chains.FamilyEVM) {
		assert.Len(t, endpoints[desc.ChainID], len(desc.RPCURLs), "chain %s", desc.ChainID)
	}
}
