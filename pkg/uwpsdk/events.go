package uwpsdk

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// Subscribe opens the wallet's push channel and returns a stream of
// server-side events. The channel closes when the context ends or the
// wallet drops the connection; the subscriber owns draining it.
func (c *Client) Subscribe(ctx context.Context) (<-chan protocol.Event, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, protocol.ErrNetworkError.WithDetail(err.Error())
	}

	// Disconnect closes the tracked connection; a new subscription
	// supersedes the previous one.
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
	}
	c.ws = conn
	c.mu.Unlock()

	events := make(chan protocol.Event, 16)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer c.dropPushConn(conn)
		for {
			var ev protocol.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// dropPushConn closes conn and forgets it unless a newer subscription
// has already replaced it.
func (c *Client) dropPushConn(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.ws == conn {
		c.ws = nil
	}
	c.mu.Unlock()
}

func (c *Client) wsURL() string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + protocol.EndpointWebSocket
}
