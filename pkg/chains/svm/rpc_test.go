package svm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedTransfer builds a signed transfer and returns its signature, payer and base64 encoding
func signedTransfer(t *testing.T) (solana.Signature, solana.PublicKey, string) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	recipient := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1000, payer.PublicKey(), recipient).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)

	sigs, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return sigs[0], payer.PublicKey(), base64.StdEncoding.EncodeToString(raw)
}

func newSolanaServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.Unmarshal(body, &req))

		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func transactionResult(encoded, metaErr string) string {
	return `{"slot":42,"blockTime":null,"transaction":["` + encoded + `","base64"],` +
		`"meta":{"err":` + metaErr + `,"fee":5000,"preBalances":[],"postBalances":[],"logMessages":[]}}`
}

func TestGetTransactionReceiptSuccess(t *testing.T) {
	sig, payer, encoded := signedTransfer(t)
	server := newSolanaServer(t, map[string]string{
		"getTransaction": transactionResult(encoded, "null"),
	})
	client := NewRPCClient("solana", []string{server.URL})

	receipt, err := client.GetTransactionReceipt(context.Background(), sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig.String(), receipt.Hash)
	assert.Equal(t, types.ReceiptSuccess, receipt.Status)
	assert.Equal(t, uint64(42), receipt.BlockNumber)
	assert.Equal(t, payer.String(), receipt.From)
}

func TestGetTransactionReceiptFailedTransaction(t *testing.T) {
	sig, _, encoded := signedTransfer(t)
	server := newSolanaServer(t, map[string]string{
		"getTransaction": transactionResult(encoded, `{"InstructionError":[0,{"Custom":1}]}`),
	})
	client := NewRPCClient("solana", []string{server.URL})

	receipt, err := client.GetTransactionReceipt(context.Background(), sig.String())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptFailure, receipt.Status)
}

func TestGetTransactionReceiptNotFound(t *testing.T) {
	sig, _, _ := signedTransfer(t)
	server := newSolanaServer(t, map[string]string{"getTransaction": "null"})
	client := NewRPCClient("solana", []string{server.URL})

	_, err := client.GetTransactionReceipt(context.Background(), sig.String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestGetTransactionReceiptInvalidSignature(t *testing.T) {
	client := NewRPCClient("solana", []string{"http://127.0.0.1:1"})

	_, err := client.GetTransactionReceipt(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestIsHealthy(t *testing.T) {
	server := newSolanaServer(t, map[string]string{"getHealth": `"ok"`})
	client := NewRPCClient("solana", nil)

	assert.True(t, client.IsHealthy(context.Background(), server.URL))
	assert.False(t, client.IsHealthy(context.Background(), "http://127.0.0.1:1"))
}
