package wsrpc

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to WebSocket peers and hands each new peer
// to onPeer before any message is read.
func Handler(logger *slog.Logger, onPeer func(*Peer)) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if logger != nil {
				logger.Warn("websocket upgrade failed", "error", err)
			}
			return
		}
		peer := newPeer(conn, logger)
		onPeer(peer)
		peer.start()
	})
}
