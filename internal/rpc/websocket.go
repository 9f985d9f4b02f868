package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/coldcall/coldcall/internal/pool"
)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	// PoolSize caps the idle connections kept for reuse. Sizing it to the
	// worker count lets every worker hold its own connection.
	PoolSize int
}

// WebSocketTransport speaks JSON-RPC over pooled WebSocket connections.
// Each call checks a connection out of the pool, so concurrent callers
// never serialize on a single socket. Responses are matched to requests
// by id so unrelated frames (e.g. subscription notifications) are
// skipped.
type WebSocketTransport struct {
	conns        *pool.Pool
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewWebSocketTransport creates a transport; connections are established
// lazily as calls need them.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	factory := func() pool.Conn {
		return &wsConn{url: cfg.URL, headers: cfg.Headers, dialer: dialer}
	}

	return &WebSocketTransport{
		conns:        pool.New(cfg.PoolSize, factory),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (t *WebSocketTransport) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	conn, reused := t.conns.Get()
	c := conn.(*wsConn)
	if !reused {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	body, err := t.exchange(c, payload)
	if err != nil {
		// The connection may have unread frames in flight; discard it
		// rather than risk matching a stale response later.
		_ = c.Close()
		return nil, err
	}

	_ = t.conns.Put(c)
	return body, nil
}

func (t *WebSocketTransport) exchange(c *wsConn, payload []byte) ([]byte, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("websocket write: %w", err)
	}

	wantID := gjson.GetBytes(payload, "id")
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return nil, err
		}
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		if gjson.GetBytes(message, "id").Raw == wantID.Raw {
			return message, nil
		}
		// Not ours: a notification or a stale response. Keep reading.
	}
}

// Close tears down all pooled connections.
func (t *WebSocketTransport) Close() error {
	return t.conns.Close()
}

// wsConn is one pooled WebSocket connection.
type wsConn struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer
	conn    *websocket.Conn
}

func (c *wsConn) Connect(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.conn = conn
	return nil
}

// Close performs the closing handshake and tears the connection down.
func (c *wsConn) Close() error {
	if c.conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}
