package evm

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTransactionHash(t *testing.T) {
	v := NewTransactionValidator()
	upper := "0x" + strings.ToUpper(strings.Repeat("ab", 32))

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "prefixed", input: testTxHash, want: testTxHash},
		{name: "missing prefix", input: testTxHash[2:], want: testTxHash},
		{name: "upper case", input: upper, want: "0x" + strings.Repeat("ab", 32)},
		{name: "too short", input: "0xabc", wantErr: true},
		{name: "not hex", input: "0x" + strings.Repeat("zz", 32), wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.NormalizeTransactionHash(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressesEqual(t *testing.T) {
	v := NewTransactionValidator()
	assert.True(t, v.AddressesEqual("0xAbCd000000000000000000000000000000000001", "0xabcd000000000000000000000000000000000001"))
	assert.False(t, v.AddressesEqual("0xabcd000000000000000000000000000000000001", "0xabcd000000000000000000000000000000000002"))
}

func TestInitEVMChains(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	registry := chains.NewRegistry(chains.DefaultNetworks()...)

	require.NoError(t, InitEVMChains(logger, registry))

	adapter, err := registry.Adapter(chains.EVM(137))
	require.NoError(t, err)
	assert.Equal(t, chains.EVM(137), adapter.ChainID())
	assert.NotNil(t, adapter.RPCClient())

	// Non-EVM networks are left alone
	_, err = registry.Adapter("solana")
	assert.Error(t, err)
}

func TestInitEVMChainsWithEndpoints(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	registry := chains.NewRegistry(chains.DefaultNetworks()...)

	err := InitEVMChainsWithEndpoints(logger, registry, map[chains.ChainID][]string{
		chains.EVM(1):      {"https://example-rpc.invalid"},
		chains.EVM(999999): {"https://unknown.invalid"},
		"solana":           {"https://api.mainnet-beta.solana.com"},
	})
	require.NoError(t, err)

	adapter, err := registry.Adapter(chains.EVM(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example-rpc.invalid"}, adapter.RPCClient().(*RPCClient).Endpoints())

	_, err = registry.Adapter(chains.EVM(999999))
	assert.Error(t, err)
	_, err = registry.Adapter("solana")
	assert.Error(t, err)
}

func TestPrioritizeHealthyEmpty(t *testing.T) {
	assert.Empty(t, PrioritizeHealthy(context.Background(), NewRPCClient("1", nil)))
}
