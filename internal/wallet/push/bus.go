// Package push fans wallet events out to websocket subscribers, typically
// the wallet's own UI watching for incoming authorization requests.
package push

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xian-network/go-uwp/internal/wallet/obs"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

const writeTimeout = 5 * time.Second

// Bus tracks live websocket connections and broadcasts protocol events to
// all of them. A connection that cannot be written to within the write
// timeout is dropped; delivery is best effort.
type Bus struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool

	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		conns:  make(map[*websocket.Conn]struct{}),
		logger: logger,
	}
}

// Register adds a subscriber. Returns false if the bus has shut down, in
// which case the caller owns closing the connection.
func (b *Bus) Register(conn *websocket.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.conns[conn] = struct{}{}
	b.logger.Debug("push subscriber connected", "subscribers", len(b.conns))
	return true
}

// Unregister removes a subscriber without closing it.
func (b *Bus) Unregister(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, conn)
}

// Count reports the number of live subscribers.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Broadcast sends the event to every subscriber. Failed connections are
// closed and removed.
func (b *Bus) Broadcast(event protocol.Event) {
	obs.ObservePushEvent(event.Type)

	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			b.logger.Debug("dropping push subscriber", "error", err)
			conn.Close()
			delete(b.conns, conn)
		}
	}
}

// Shutdown broadcasts a shutdown event, then closes every connection. The
// bus accepts no new subscribers afterwards.
func (b *Bus) Shutdown() {
	b.Broadcast(protocol.Event{Type: protocol.EventShutdown, Detail: "wallet is shutting down"})

	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for conn := range b.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(writeTimeout))
		conn.Close()
		delete(b.conns, conn)
	}
}

// RequestCreated implements the registry notifier.
func (b *Bus) RequestCreated(info protocol.PendingRequestInfo) {
	b.Broadcast(protocol.Event{
		Type:    protocol.EventAuthorizationRequest,
		Request: info,
	})
}

// RequestResolved implements the registry notifier.
func (b *Bus) RequestResolved(requestID string, status protocol.RequestStatus) {
	b.Broadcast(protocol.Event{
		Type: protocol.EventAuthorizationResolved,
		Request: map[string]any{
			"request_id": requestID,
			"status":     status,
		},
	})
}

// WalletLocked broadcasts a lock state change.
func (b *Bus) WalletLocked(locked bool) {
	eventType := protocol.EventWalletUnlocked
	if locked {
		eventType = protocol.EventWalletLocked
	}
	b.Broadcast(protocol.Event{Type: eventType})
}
