package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/transport/wsrpc"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// PeerRelay is a Relay reached over a WebSocket JSON-RPC connection. Each
// proposal opens its own connection; once the wallet approves, the same
// connection carries the wallet's EIP-1193 traffic.
//
// Protocol: the client calls pair_propose {chains} and receives {uri}; the
// relay later sends pair_approved or pair_rejected {reason}.
type PeerRelay struct {
	url    string
	logger *slog.Logger
}

// NewPeerRelay creates a relay client for url
func NewPeerRelay(url string, logger *slog.Logger) *PeerRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeerRelay{url: url, logger: logger}
}

var _ Relay = (*PeerRelay)(nil)

type proposeParams struct {
	Chains []string `json:"chains"`
}

type proposeResult struct {
	URI string `json:"uri"`
}

type rejectParams struct {
	Reason string `json:"reason"`
}

// Propose implements Relay
func (r *PeerRelay) Propose(ctx context.Context, chainIDs []chains.ChainID) (Proposal, error) {
	peer, err := wsrpc.Dial(ctx, r.url, r.logger)
	if err != nil {
		return nil, err
	}

	p := &peerProposal{
		peer:     peer,
		approved: make(chan struct{}),
		rejected: make(chan string, 1),
	}
	p.unsubs = append(p.unsubs,
		peer.On("pair_approved", func(json.RawMessage) {
			p.once.Do(func() { close(p.approved) })
		}),
		peer.On("pair_rejected", func(raw json.RawMessage) {
			var params rejectParams
			_ = json.Unmarshal(raw, &params)
			select {
			case p.rejected <- params.Reason:
			default:
			}
		}),
	)

	params := proposeParams{Chains: make([]string, 0, len(chainIDs))}
	for _, id := range chainIDs {
		params.Chains = append(params.Chains, caip2(id))
	}

	var result proposeResult
	if err := peer.Call(ctx, "pair_propose", params, &result); err != nil {
		_ = peer.Close()
		return nil, err
	}
	if result.URI == "" {
		_ = peer.Close()
		return nil, types.NewError(types.KindProviderError, "relay returned an empty pairing URI", nil)
	}
	p.uri = result.URI
	return p, nil
}

type peerProposal struct {
	peer     *wsrpc.Peer
	uri      string
	approved chan struct{}
	rejected chan string
	once     sync.Once
	unsubs   []func()
}

func (p *peerProposal) URI() string {
	return p.uri
}

func (p *peerProposal) Wait(ctx context.Context) (Provider, error) {
	defer func() {
		for _, unsub := range p.unsubs {
			unsub()
		}
	}()

	select {
	case <-p.approved:
		return NewPeerProvider(p.peer), nil
	case reason := <-p.rejected:
		_ = p.peer.Close()
		return nil, types.NewError(types.KindPairingRejected, reason, nil)
	case <-p.peer.Done():
		return nil, types.NewError(types.KindProviderError, "relay connection closed during pairing", nil)
	case <-ctx.Done():
		_ = p.peer.Close()
		return nil, ctx.Err()
	}
}

// caip2 renders a chain id as a CAIP-2 identifier, e.g. "eip155:137"
func caip2(id chains.ChainID) string {
	if _, ok := id.Numeric(); ok {
		return fmt.Sprintf("eip155:%s", id)
	}
	return id.String()
}
