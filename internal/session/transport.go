// ABOUTME: Transport abstraction for session frames and its websocket implementation
// ABOUTME: Wraps coder/websocket text frames so sessions can be tested without a network

package session

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"
)

// Transport carries whole frames for one connection. Write is only called
// from the session's writer goroutine; Close may be called concurrently.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// WebSocketTransport adapts a websocket connection to Transport.
type WebSocketTransport struct {
	conn *websocket.Conn
}

// NewWebSocketTransport wraps conn. A positive readLimit caps inbound frame size.
func NewWebSocketTransport(conn *websocket.Conn, readLimit int64) *WebSocketTransport {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &WebSocketTransport{conn: conn}
}

// Read returns the next frame.
func (t *WebSocketTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

// Write sends frame as a text message.
func (t *WebSocketTransport) Write(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

// Close performs the websocket close handshake.
func (t *WebSocketTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}

// isNormalClose reports whether a read error is an ordinary end of the
// connection rather than a failure worth logging.
func isNormalClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
