package svm

import (
	"context"
	"encoding/json"

	"github.com/sigweihq/beatmarket/pkg/transport/wsrpc"
)

// PeerWallet is a Wallet reached over a WebSocket JSON-RPC connection
type PeerWallet struct {
	peer *wsrpc.Peer
}

// NewPeerWallet wraps a connected peer
func NewPeerWallet(peer *wsrpc.Peer) *PeerWallet {
	return &PeerWallet{peer: peer}
}

var _ Wallet = (*PeerWallet)(nil)

type connectResult struct {
	PublicKey string `json:"publicKey"`
}

// Connect implements Wallet
func (w *PeerWallet) Connect(ctx context.Context) (string, error) {
	var result connectResult
	if err := w.peer.Call(ctx, "connect", nil, &result); err != nil {
		return "", err
	}
	return result.PublicKey, nil
}

// Disconnect implements Wallet
func (w *PeerWallet) Disconnect(ctx context.Context) error {
	return w.peer.Call(ctx, "disconnect", nil, nil)
}

// On implements Wallet
func (w *PeerWallet) On(event string, fn func(json.RawMessage)) func() {
	return w.peer.On(event, fn)
}
