package http

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/xian-network/go-uwp/internal/wallet/push"
	"github.com/xian-network/go-uwp/pkg/slogx"
)

// WSHandler upgrades GET /ws/v1 and registers the connection on the push
// bus. The channel is broadcast-only; inbound frames are read and dropped
// so pings and close handshakes keep working.
type WSHandler struct {
	Bus *push.Bus
}

var upgrader = websocket.Upgrader{
	// Browser DApps connect cross-origin; access control happens via the
	// session layer and CORS on the REST surface, not the push channel.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	if !h.Bus.Register(conn) {
		conn.Close()
		return
	}

	go func() {
		defer func() {
			h.Bus.Unregister(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
