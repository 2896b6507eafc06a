// ABOUTME: Closed inbound and outbound event variants for the websocket protocol
// ABOUTME: Each variant maps to one {"type", "data"} envelope on the wire

package events

import "time"

// Type names an event on the wire.
type Type string

// Inbound event types.
const (
	TypeSendMessage   Type = "send_message"
	TypeMarkRead      Type = "mark_read"
	TypeTyping        Type = "typing"
	TypePresenceQuery Type = "presence_query"
)

// Outbound event types.
const (
	TypeConnected        Type = "connected"
	TypeMessageSent      Type = "message_sent"
	TypeNewMessage       Type = "new_message"
	TypeMessageDelivered Type = "message_delivered"
	TypeMessageRead      Type = "message_read"
	TypeUserTyping       Type = "user_typing"
	TypeOnlineStatus     Type = "online_status"
	TypeError            Type = "error"
)

// Length limits counted in runes. The validate tags below repeat these values.
const (
	MaxContentRunes  = 4096
	MaxIdentityRunes = 320
)

// TimestampLayout is the wire format for message timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout. UTC instants always
// end in a literal "Z".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Inbound is a client-to-gateway event. The set of implementations is closed.
type Inbound interface {
	InboundType() Type
	inbound()
}

// SendMessage asks the gateway to deliver content to recipient.
type SendMessage struct {
	Recipient string `json:"recipient" validate:"required,max=320"`
	Content   string `json:"content" validate:"required,max=4096"`
}

// MarkRead acknowledges a received message.
type MarkRead struct {
	MessageID string `json:"message_id" validate:"required,max=64"`
}

// Typing signals the sender's typing state to recipient.
type Typing struct {
	Recipient string `json:"recipient"`
	IsTyping  bool   `json:"is_typing"`
}

// PresenceQuery asks whether Identity is online.
type PresenceQuery struct {
	Identity string `json:"identity" validate:"required,max=320"`
}

func (SendMessage) InboundType() Type   { return TypeSendMessage }
func (MarkRead) InboundType() Type      { return TypeMarkRead }
func (Typing) InboundType() Type        { return TypeTyping }
func (PresenceQuery) InboundType() Type { return TypePresenceQuery }

func (SendMessage) inbound()   {}
func (MarkRead) inbound()      {}
func (Typing) inbound()        {}
func (PresenceQuery) inbound() {}

// Outbound is a gateway-to-client event. The set of implementations is closed.
type Outbound interface {
	OutboundType() Type
	outbound()
}

// Connected confirms authentication to the new connection.
type Connected struct {
	Identity string `json:"identity"`
}

// MessagePayload is the full view of a message carried by MessageSent and
// NewMessage.
type MessagePayload struct {
	MessageID     string `json:"message_id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	Content       string `json:"content"`
	Timestamp     string `json:"timestamp"`
	Status        string `json:"status"`
	IsBotResponse bool   `json:"is_bot_response"`
	ContentHTML   string `json:"content_html,omitempty"`
}

// MessageSent confirms a message was persisted.
type MessageSent struct {
	MessagePayload
}

// NewMessage carries a message to a recipient connection.
type NewMessage struct {
	MessagePayload
}

// MessageDelivered tells the sender a message reached the recipient.
type MessageDelivered struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// MessageRead tells the sender a message was read.
type MessageRead struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	ReadBy    string `json:"read_by"`
}

// UserTyping relays a typing indicator.
type UserTyping struct {
	Sender   string `json:"sender"`
	IsTyping bool   `json:"is_typing"`
}

// OnlineStatus answers a PresenceQuery.
type OnlineStatus struct {
	Identity string `json:"identity"`
	IsOnline bool   `json:"is_online"`
}

// Error reports a failed operation to the originating connection.
type Error struct {
	Message string `json:"message"`
}

func (Connected) OutboundType() Type        { return TypeConnected }
func (MessageSent) OutboundType() Type      { return TypeMessageSent }
func (NewMessage) OutboundType() Type       { return TypeNewMessage }
func (MessageDelivered) OutboundType() Type { return TypeMessageDelivered }
func (MessageRead) OutboundType() Type      { return TypeMessageRead }
func (UserTyping) OutboundType() Type       { return TypeUserTyping }
func (OnlineStatus) OutboundType() Type     { return TypeOnlineStatus }
func (Error) OutboundType() Type            { return TypeError }

func (Connected) outbound()        {}
func (MessageSent) outbound()      {}
func (NewMessage) outbound()       {}
func (MessageDelivered) outbound() {}
func (MessageRead) outbound()      {}
func (UserTyping) outbound()       {}
func (OnlineStatus) outbound()     {}
func (Error) outbound()            {}

// Client-visible error messages.
const (
	ErrMsgInvalidData = "Invalid message data"
	ErrMsgSendFailed  = "Failed to send message"
	ErrMsgMarkFailed  = "Failed to mark message as read"
	ErrMsgUnknownType = "Unknown event type"
	ErrMsgMalformed   = "Malformed event"
	ErrMsgRateLimited = "Rate limit exceeded"
)
