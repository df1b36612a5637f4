package processor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/chains/evm"
	"github.com/sigweihq/beatmarket/pkg/store/memory"
	"github.com/sigweihq/beatmarket/pkg/store/storetest"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const purchaseHash = "0x9b7c6a1e7e0f4a3a1c5ff0b1f08b2cb2a9d7c0c0b8e3c1b7d06a0cce4a3b1e11"

const marketContract = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"

func receiptBody(status, from string) string {
	return receiptTo(status, from, marketContract)
}

func receiptTo(status, from, to string) string {
	return `{
		"transactionHash": "` + purchaseHash + `",
		"blockNumber": "0x10",
		"from": "` + from + `",
		"to": "` + to + `",
		"status": "` + status + `",
		"cumulativeGasUsed": "0x5208",
		"gasUsed": "0x5208",
		"logsBloom": "0x` + strings.Repeat("0", 512) + `",
		"logs": []
	}`
}

// chainNode answers eth_getTransactionReceipt with result
func chainNode(t *testing.T, result string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if req.Method == "eth_getTransactionReceipt" {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func newProcessor(t *testing.T, result string, opts ...PurchaseOption) (*PurchaseProcessor, *memory.Store) {
	t.Helper()
	registry := chains.NewRegistry(chains.DefaultNetworks()...)
	require.NoError(t, evm.InitEVMChainsWithEndpoints(nil, registry, map[chains.ChainID][]string{
		chains.EVM(137): {chainNode(t, result)},
	}))

	s := memory.New()
	require.NoError(t, s.CreateBeat(context.Background(), storetest.NewBeat("b1")))
	return NewPurchaseProcessor(registry, NewReconciler(s, nil, nil), nil, nil, opts...), s
}

func TestConfirmPurchase(t *testing.T) {
	p, s := newProcessor(t, receiptBody("0x1", buyer))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", strings.ToUpper(purchaseHash[2:]), strings.ToLower(buyer))
	require.NoError(t, err)
	assert.Equal(t, Updated, result.Outcome)

	beat, err := s.FindBeat(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, beat.IsListed)
	assert.Equal(t, purchaseHash, *beat.PurchaseTxHash)
	assert.True(t, strings.EqualFold(buyer, *beat.OwnerAddress))

	result, err = p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, AlreadyReconciled, result.Outcome)
}

func TestConfirmPurchaseRevertedTransaction(t *testing.T) {
	p, s := newProcessor(t, receiptBody("0x0", buyer))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)

	beat, err := s.FindBeat(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, beat.IsListed)
}

func TestConfirmPurchaseSenderMismatch(t *testing.T) {
	p, _ := newProcessor(t, receiptBody("0x1", "0x1111111111111111111111111111111111111111"))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.Contains(t, result.Reason, "buyer")
}

func TestConfirmPurchasePending(t *testing.T) {
	p, _ := newProcessor(t, "null")

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
}

func TestConfirmPurchaseInvalidHash(t *testing.T) {
	p, _ := newProcessor(t, receiptBody("0x1", buyer))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", "0xabc", buyer)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
}

func TestConfirmPurchaseUnknownChain(t *testing.T) {
	p, _ := newProcessor(t, receiptBody("0x1", buyer))

	_, err := p.ConfirmPurchase(context.Background(), chains.EVM(999999), "b1", purchaseHash, buyer)
	assert.ErrorIs(t, err, types.ErrUnknownChain)
}

func TestConfirmPurchaseChecksContract(t *testing.T) {
	p, _ := newProcessor(t, receiptBody("0x1", buyer), WithContract(strings.ToLower(marketContract)))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, Updated, result.Outcome)
}

func TestConfirmPurchaseOtherContract(t *testing.T) {
	other := "0x1111111111111111111111111111111111111111"
	p, s := newProcessor(t, receiptTo("0x1", buyer, other), WithContract(marketContract))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.Contains(t, result.Reason, "marketplace contract")

	beat, err := s.FindBeat(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, beat.IsListed)
	assert.Nil(t, beat.PurchaseTxHash)
}

func TestConfirmPurchaseContractCreation(t *testing.T) {
	body := strings.Replace(receiptTo("0x1", buyer, ""), `"to": "",`, `"to": null,`, 1)
	p, _ := newProcessor(t, body, WithContract(marketContract))

	result, err := p.ConfirmPurchase(context.Background(), chains.EVM(137), "b1", purchaseHash, buyer)
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
}
