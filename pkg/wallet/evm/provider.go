// Package evm implements wallet adapters for Ethereum-style wallets that speak
// the EIP-1193 request/event protocol.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/beatmarket/pkg/transport/wsrpc"
)

// Provider is an EIP-1193 wallet endpoint
type Provider interface {
	// Request performs a JSON-RPC request and decodes the result into result
	Request(ctx context.Context, result any, method string, params ...any) error

	// On subscribes to a wallet event such as "accountsChanged". The
	// returned func unsubscribes.
	On(event string, fn func(json.RawMessage)) func()
}

// PeerProvider is a Provider backed by a WebSocket JSON-RPC peer
type PeerProvider struct {
	peer *wsrpc.Peer
}

// NewPeerProvider wraps a connected peer
func NewPeerProvider(peer *wsrpc.Peer) *PeerProvider {
	return &PeerProvider{peer: peer}
}

var _ Provider = (*PeerProvider)(nil)

// Request implements Provider
func (p *PeerProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	var args any
	if len(params) > 0 {
		args = params
	}
	return p.peer.Call(ctx, method, args, result)
}

// On implements Provider
func (p *PeerProvider) On(event string, fn func(json.RawMessage)) func() {
	return p.peer.On(event, fn)
}

// Close closes the underlying connection
func (p *PeerProvider) Close() error {
	return p.peer.Close()
}

// RPCProvider is a Provider backed by a go-ethereum RPC client, for wallets
// that expose a local JSON-RPC endpoint. Events need a transport with
// notifications (WebSocket or IPC); over HTTP, On is a no-op.
type RPCProvider struct {
	client *rpc.Client
	logger *slog.Logger
}

// DialProvider connects to a wallet's JSON-RPC endpoint
func DialProvider(ctx context.Context, url string, logger *slog.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet endpoint: %w", err)
	}
	return NewRPCProvider(client, logger), nil
}

// NewRPCProvider wraps an existing RPC client
func NewRPCProvider(client *rpc.Client, logger *slog.Logger) *RPCProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCProvider{client: client, logger: logger}
}

var _ Provider = (*RPCProvider)(nil)

// Request implements Provider
func (r *RPCProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	return r.client.CallContext(ctx, result, method, params...)
}

// On implements Provider
func (r *RPCProvider) On(event string, fn func(json.RawMessage)) func() {
	ch := make(chan json.RawMessage, 16)
	sub, err := r.client.EthSubscribe(context.Background(), ch, event)
	if err != nil {
		r.logger.Debug("wallet endpoint does not support event subscriptions", "event", event, "error", err)
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg := <-ch:
				fn(msg)
			case <-sub.Err():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Unsubscribe()
			close(done)
		})
	}
}

// Close closes the RPC client
func (r *RPCProvider) Close() error {
	r.client.Close()
	return nil
}
