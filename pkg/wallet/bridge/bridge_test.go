package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/transport/wsrpc"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tonAddress = "UQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG"

// hostApp answers bridge calls the way a mobile host would
func hostApp(t *testing.T, handlers map[string]wsrpc.MethodHandler) (*wsrpc.Peer, chan *wsrpc.Peer) {
	t.Helper()
	hosts := make(chan *wsrpc.Peer, 1)
	server := httptest.NewServer(wsrpc.Handler(nil, func(p *wsrpc.Peer) {
		for method, fn := range handlers {
			p.Handle(method, fn)
		}
		hosts <- p
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	peer, err := wsrpc.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })
	return peer, hosts
}

func respond(resp Response) wsrpc.MethodHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		return resp, nil
	}
}

func newTestRegistry() *chains.Registry {
	return chains.NewRegistry(chains.DefaultNetworks()...)
}

func TestConnectBridgeUnavailable(t *testing.T) {
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return nil })
	assert.False(t, adapter.Installed())

	_, err := adapter.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBridgeUnavailable)
	assert.Equal(t, types.KindBridgeUnavailable, types.KindOf(err))
}

func TestConnectTelegram(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"connect_wallet": respond(Response{Address: tonAddress}),
	})
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return peer })

	conn, err := adapter.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tonAddress, conn.Address)
	assert.Equal(t, chains.ChainID("ton"), conn.ChainID)
	assert.Nil(t, conn.Signer)
	assert.Equal(t, chains.FamilyTON, adapter.Family())
}

func TestConnectTonkeeperReadsAccountsArray(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"ton_requestAccounts": func(ctx context.Context, params json.RawMessage) (any, error) {
			return []string{tonAddress, "UQAb2sZ1a1l3kaGRbLWTj5HAUJ6t5h8QnUbG1KzGXzD0AQ9Y"}, nil
		},
	})
	adapter := NewTonkeeper(newTestRegistry(), func() Bridge { return peer })

	conn, err := adapter.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tonAddress, conn.Address)
	assert.Equal(t, chains.ChainID("ton"), conn.ChainID)
}

func TestConnectTonkeeperNoAccounts(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"ton_requestAccounts": func(ctx context.Context, params json.RawMessage) (any, error) {
			return []string{}, nil
		},
	})
	adapter := NewTonkeeper(newTestRegistry(), func() Bridge { return peer })

	_, err := adapter.Connect(context.Background())
	assert.ErrorIs(t, err, types.ErrProviderError)
}

func TestConnectTelegramRejectsArrayReply(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"connect_wallet": func(ctx context.Context, params json.RawMessage) (any, error) {
			return []string{tonAddress}, nil
		},
	})
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return peer })

	_, err := adapter.Connect(context.Background())
	assert.ErrorIs(t, err, types.ErrProviderError)
}

func TestDecoders(t *testing.T) {
	resp, err := DecodeAccounts(json.RawMessage(`["` + tonAddress + `"]`))
	require.NoError(t, err)
	assert.Equal(t, Response{Address: tonAddress}, resp)

	resp, err = DecodeAccounts(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, resp.Address)

	resp, err = DecodeResponse(json.RawMessage(`{"address":"` + tonAddress + `","chain":"ton"}`))
	require.NoError(t, err)
	assert.Equal(t, Response{Address: tonAddress, Chain: "ton"}, resp)

	_, err = DecodeResponse(json.RawMessage(`["` + tonAddress + `"]`))
	assert.Error(t, err)
}

func TestConnectRejectedByUser(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"connect_wallet": func(ctx context.Context, params json.RawMessage) (any, error) {
			return nil, &wsrpc.Error{Code: 4001, Message: "User declined"}
		},
	})
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return peer })

	_, err := adapter.Connect(context.Background())
	assert.ErrorIs(t, err, types.ErrUserRejected)
}

func TestConnectMissingAddress(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"connect_wallet": respond(Response{}),
	})
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return peer })

	_, err := adapter.Connect(context.Background())
	assert.ErrorIs(t, err, types.ErrProviderError)
}

func TestConnectUnknownChain(t *testing.T) {
	peer, _ := hostApp(t, map[string]wsrpc.MethodHandler{
		"connect_wallet": respond(Response{Address: tonAddress, Chain: "ton-testnet"}),
	})
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return peer })

	_, err := adapter.Connect(context.Background())
	assert.ErrorIs(t, err, types.ErrUnknownChain)
}

func TestSessionFollowsBridgeNotifications(t *testing.T) {
	peer, hosts := hostApp(t, map[string]wsrpc.MethodHandler{
		"connect_wallet": respond(Response{Address: tonAddress}),
	})
	host := <-hosts
	adapter := NewTelegram(newTestRegistry(), func() Bridge { return peer })

	session := wallet.NewSession(newTestRegistry(), nil, adapter)
	identity, err := session.Connect(context.Background(), "telegram")
	require.NoError(t, err)
	assert.Equal(t, tonAddress, identity.Address)

	next := "UQAb2sZ1a1l3kaGRbLWTj5HAUJ6t5h8QnUbG1KzGXzD0AQ9Y"
	require.NoError(t, host.Notify("wallet_accountChanged", Response{Address: next}))
	assert.Eventually(t, func() bool {
		return session.Identity().Address == next
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, host.Notify("wallet_disconnected", nil))
	assert.Eventually(t, func() bool {
		return session.State() == wallet.Disconnected
	}, 2*time.Second, 10*time.Millisecond)
}
