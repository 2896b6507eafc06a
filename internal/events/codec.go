// ABOUTME: JSON envelope codec with boundary validation for inbound events
// ABOUTME: Unknown types and invalid payloads are rejected before reaching the engine

package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnknownType is returned for envelopes whose type is not an inbound event.
	ErrUnknownType = errors.New("unknown event type")

	// ErrMalformed is returned for frames that are not valid envelopes or whose
	// payload fails validation.
	ErrMalformed = errors.New("malformed event")
)

var validate = validator.New()

// envelope is the {"type", "data"} frame shared by both directions.
type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeError describes an inbound frame that could not be decoded.
// Type is empty when the envelope itself could not be parsed.
type DecodeError struct {
	Type Type
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// typingWire lets is_typing default to true when omitted.
type typingWire struct {
	Recipient string `json:"recipient" validate:"required,max=320"`
	IsTyping  *bool  `json:"is_typing"`
}

// DecodeInbound parses and validates one inbound frame.
func DecodeInbound(frame []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if env.Type == "" {
		return nil, &DecodeError{Err: fmt.Errorf("%w: missing type", ErrMalformed)}
	}

	switch env.Type {
	case TypeSendMessage:
		var ev SendMessage
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeMarkRead:
		var ev MarkRead
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeTyping:
		var w typingWire
		if err := decodeData(env, &w); err != nil {
			return nil, err
		}
		ev := Typing{Recipient: w.Recipient, IsTyping: true}
		if w.IsTyping != nil {
			ev.IsTyping = *w.IsTyping
		}
		return ev, nil
	case TypePresenceQuery:
		var ev PresenceQuery
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, &DecodeError{Type: env.Type, Err: ErrUnknownType}
	}
}

func decodeData(env envelope, v any) error {
	data := env.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Type: env.Type, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if err := validate.Struct(v); err != nil {
		return &DecodeError{Type: env.Type, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return nil
}

// Encode serializes an outbound event into its envelope.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.OutboundType(), err)
	}
	return json.Marshal(envelope{Type: ev.OutboundType(), Data: data})
}

// EncodeInbound serializes an inbound event. Used by clients and tests.
func EncodeInbound(ev Inbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.InboundType(), err)
	}
	return json.Marshal(envelope{Type: ev.InboundType(), Data: data})
}

// Frame is a decoded outbound envelope as seen by a client.
type Frame struct {
	Type Type
	Data json.RawMessage
}

// DecodeFrame splits an outbound frame into its type and raw payload.
func DecodeFrame(frame []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Frame{Type: env.Type, Data: env.Data}, nil
}
