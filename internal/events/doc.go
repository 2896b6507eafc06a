// Package events defines the wire schema exchanged between clients and the
// gateway.
//
// # Envelope
//
// Every frame is a JSON text message:
//
//	{"type": "send_message", "data": {"recipient": "bob@example.com", "content": "hi"}}
//
// # Inbound
//
// Inbound events form a closed set: SendMessage, MarkRead, Typing and
// PresenceQuery. DecodeInbound rejects unknown types and validates payloads
// with go-playground/validator before anything reaches the delivery engine.
// Failures are returned as *DecodeError, which carries the declared type and
// wraps ErrUnknownType or ErrMalformed.
//
// # Outbound
//
// Outbound events (Connected, MessageSent, NewMessage, MessageDelivered,
// MessageRead, UserTyping, OnlineStatus, Error) implement Outbound and are
// serialized with Encode. Timestamps are rendered by FormatTimestamp as fixed
// width UTC strings that sort lexically.
package events
