package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		chainsFamily = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestChainsList(t *testing.T) {
	out, err := runCLI(t, "chains")
	require.NoError(t, err)
	assert.Contains(t, out, "Polygon Mainnet")
	assert.Contains(t, out, "solana")
}

func TestChainsFamily(t *testing.T) {
	out, err := runCLI(t, "chains", "--family", "solana")
	require.NoError(t, err)
	assert.Contains(t, out, "Solana")
	assert.NotContains(t, out, "Polygon")
}

func TestChainsDescribeUnknown(t *testing.T) {
	out, err := runCLI(t, "chains", "999999")
	assert.Error(t, err)
	assert.Contains(t, out, "Chain 999999 (unsupported)")
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggingConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "beat_id", "b1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "b1", line["beat_id"])
}
