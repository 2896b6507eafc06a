// Package gateway orchestrates the ease-gateway server components.
//
// # Overview
//
// The gateway owns the message store, the presence registry, the delivery
// engine, the optional bot responder and metrics, and the HTTP server that
// exposes them.
//
// # HTTP Surface
//
//   - GET /ws - websocket upgrade; the token is checked before the handshake
//   - GET /health - liveness check
//   - GET /health/ready - readiness check, reports "ready (<n> online)"
//   - GET /metrics - Prometheus metrics when metrics.enabled is set
//
// Tokens are read from the Authorization bearer header or the token query
// parameter. Missing, malformed, wrong-secret and expired tokens get a 401
// and never create a session. The bot's reserved identity is refused with a
// 403.
//
// # Wire Protocol
//
// Every websocket frame is a JSON text message:
//
//	{"type": "send_message", "data": {"recipient": "bob@example.com", "content": "hi"}}
//
// Client events: send_message, mark_read, typing, presence_query.
// Server events: connected, message_sent, new_message, message_delivered,
// message_read, user_typing, online_status, error.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Cancelling ctx stops the HTTP server, closes every live session with a
// going-away status, and closes the store.
package gateway
