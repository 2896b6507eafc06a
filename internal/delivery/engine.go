// ABOUTME: Delivery engine: persists messages, fans out to live connections, advances status
// ABOUTME: Also drives read receipts, typing relays, presence queries, and the bot reply path

package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/2389/ease-gateway/internal/events"
	"github.com/2389/ease-gateway/internal/metrics"
	"github.com/2389/ease-gateway/internal/presence"
	"github.com/2389/ease-gateway/internal/store"
)

var (
	// ErrEmptyContent is returned when a message has no visible content.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrMissingRecipient is returned when a message has no recipient.
	ErrMissingRecipient = errors.New("message recipient is required")
)

// Responder produces reply text for messages addressed to the bot. It must
// not perform delivery itself.
type Responder interface {
	Reply(identity, text string) string
}

// Renderer converts bot reply text to HTML.
type Renderer interface {
	Render(src string) (string, error)
}

// Options configures an Engine.
type Options struct {
	// BotIdentity is the reserved identity that is always reachable and
	// answered by Responder. Empty disables the bot path.
	BotIdentity string
	Responder   Responder
	Renderer    Renderer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Engine routes inbound events between connections.
type Engine struct {
	store       store.Store
	registry    *presence.Registry
	responder   Responder
	renderer    Renderer
	metrics     *metrics.Metrics
	botIdentity string
	logger      *slog.Logger
}

// New creates an Engine over st and reg.
func New(st store.Store, reg *presence.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       st,
		registry:    reg,
		responder:   opts.Responder,
		renderer:    opts.Renderer,
		metrics:     opts.Metrics,
		botIdentity: opts.BotIdentity,
		logger:      logger.With("component", "delivery"),
	}
}

// BotIdentity returns the reserved bot identity, or "" when disabled.
func (e *Engine) BotIdentity() string { return e.botIdentity }

// Dispatch routes one decoded inbound event from origin.
func (e *Engine) Dispatch(ctx context.Context, origin presence.Handle, ev events.Inbound) error {
	switch ev := ev.(type) {
	case events.SendMessage:
		return e.SendMessage(ctx, origin, ev.Recipient, ev.Content)
	case events.MarkRead:
		return e.MarkRead(ctx, origin, ev.MessageID)
	case events.Typing:
		e.Typing(origin, ev.Recipient, ev.IsTyping)
		return nil
	case events.PresenceQuery:
		e.OnlineStatus(origin, ev.Identity)
		return nil
	default:
		return fmt.Errorf("%w: %T", events.ErrUnknownType, ev)
	}
}

// SendMessage persists a message from origin's identity to recipient and
// delivers it. Status events for the sender go to origin first and are then
// mirrored to the sender's other connections.
func (e *Engine) SendMessage(ctx context.Context, origin presence.Handle, recipient, content string) error {
	sender := origin.Identity()

	if recipient == "" {
		e.emit(origin, events.Error{Message: events.ErrMsgInvalidData})
		return ErrMissingRecipient
	}
	if strings.TrimSpace(content) == "" {
		e.emit(origin, events.Error{Message: events.ErrMsgInvalidData})
		return ErrEmptyContent
	}

	msg := &store.Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Status:    store.StatusSent,
	}
	if err := e.store.InsertMessage(ctx, msg); err != nil {
		e.metrics.StoreError("insert")
		e.logger.Error("failed to persist message",
			"identity", sender,
			"recipient", recipient,
			"error", err)
		e.emit(origin, events.Error{Message: events.ErrMsgSendFailed})
		return fmt.Errorf("persisting message: %w", err)
	}
	e.metrics.MessagePersisted(metrics.OriginUser)

	// Once persisted, the rest of the operation runs to completion even if
	// the originating connection goes away.
	ctx = context.WithoutCancel(ctx)

	e.logger.Debug("message persisted",
		"message_id", msg.ID,
		"identity", sender,
		"recipient", recipient,
		"preview", preview(content))

	e.notifySender(origin, events.MessageSent{MessagePayload: e.payload(msg, "")})

	notifyDelivered := func() {
		e.notifySender(origin, events.MessageDelivered{
			MessageID: msg.ID,
			Status:    string(store.StatusDelivered),
		})
	}
	if err := e.deliver(ctx, msg, "", notifyDelivered); err != nil {
		e.emit(origin, events.Error{Message: events.ErrMsgSendFailed})
		return err
	}

	if e.isBot(recipient) && e.responder != nil {
		if err := e.botReply(ctx, origin, msg); err != nil {
			e.emit(origin, events.Error{Message: events.ErrMsgSendFailed})
			return err
		}
	}
	return nil
}

// deliver marks msg Delivered when its recipient is reachable, runs
// onDelivered, and only then fans msg out to the recipient's live
// connections. No read receipt can exist before the recipient has seen the
// message, so the sender always learns Delivered before Read. A bot recipient
// counts as reachable without any connection. Offline recipients leave the
// message in Sent.
func (e *Engine) deliver(ctx context.Context, msg *store.Message, html string, onDelivered func()) error {
	handles := e.registry.HandlesFor(msg.Recipient)

	if len(handles) == 0 && !e.isBot(msg.Recipient) {
		e.metrics.MessageQueued()
		e.logger.Debug("recipient offline, message queued",
			"message_id", msg.ID,
			"recipient", msg.Recipient)
		return nil
	}

	n, err := e.store.UpdateMessageStatus(ctx, msg.ID, store.StatusDelivered)
	if err != nil {
		e.metrics.StoreError("update")
		e.logger.Error("failed to mark message delivered",
			"message_id", msg.ID,
			"error", err)
		return fmt.Errorf("marking delivered: %w", err)
	}

	if n > 0 {
		msg.Status = store.StatusDelivered
		e.metrics.MessageDelivered()
		if onDelivered != nil {
			onDelivered()
		}
	} else {
		// Already at or past Delivered; report the stored status instead.
		if current, err := e.store.FindMessage(ctx, msg.ID); err == nil {
			msg.Status = current.Status
		}
		e.logger.Debug("message already past Delivered",
			"message_id", msg.ID,
			"status", msg.Status)
	}

	e.fanOut(handles, events.NewMessage{MessagePayload: e.payload(msg, html)})

	e.logger.Debug("message delivered",
		"message_id", msg.ID,
		"recipient", msg.Recipient,
		"handles", len(handles))
	return nil
}

// botReply models the bot reading msg and answering it. The reply goes
// through deliver like any other message.
func (e *Engine) botReply(ctx context.Context, origin presence.Handle, msg *store.Message) error {
	reply := e.responder.Reply(msg.Sender, msg.Content)

	if _, err := e.store.UpdateMessageStatus(ctx, msg.ID, store.StatusRead); err != nil {
		e.metrics.StoreError("update")
		e.logger.Error("failed to mark bot message read",
			"message_id", msg.ID,
			"error", err)
		return fmt.Errorf("marking read: %w", err)
	}
	msg.Status = store.StatusRead
	e.metrics.MessageRead()

	e.notifySender(origin, events.MessageRead{
		MessageID: msg.ID,
		Status:    string(store.StatusRead),
		ReadBy:    e.botIdentity,
	})

	if strings.TrimSpace(reply) == "" {
		e.logger.Warn("responder returned empty reply", "message_id", msg.ID)
		return nil
	}

	html := e.render(reply)
	botMsg := &store.Message{
		Sender:        e.botIdentity,
		Recipient:     msg.Sender,
		Content:       reply,
		IsBotResponse: true,
		Status:        store.StatusSent,
	}
	if err := e.store.InsertMessage(ctx, botMsg); err != nil {
		e.metrics.StoreError("insert")
		e.logger.Error("failed to persist bot reply",
			"in_reply_to", msg.ID,
			"error", err)
		return fmt.Errorf("persisting bot reply: %w", err)
	}
	e.metrics.MessagePersisted(metrics.OriginBot)

	return e.deliver(ctx, botMsg, html, nil)
}

// MarkRead marks a message addressed to origin's identity as Read and tells
// the sender's live connections. Unknown ids, malformed ids, messages for
// someone else and already-read messages change nothing.
func (e *Engine) MarkRead(ctx context.Context, origin presence.Handle, messageID string) error {
	reader := origin.Identity()

	if _, err := uuid.Parse(messageID); err != nil {
		e.logger.Debug("ignoring mark_read with malformed id",
			"identity", reader,
			"message_id", messageID)
		return nil
	}

	n, err := e.store.UpdateMessageStatusIfRecipient(ctx, messageID, reader, store.StatusRead)
	if err != nil {
		e.metrics.StoreError("update")
		e.logger.Error("failed to mark message read",
			"message_id", messageID,
			"identity", reader,
			"error", err)
		e.emit(origin, events.Error{Message: events.ErrMsgMarkFailed})
		return fmt.Errorf("marking read: %w", err)
	}
	if n == 0 {
		return nil
	}
	e.metrics.MessageRead()

	msg, err := e.store.FindMessage(ctx, messageID)
	if err != nil {
		e.metrics.StoreError("find")
		e.logger.Error("failed to load message for read receipt",
			"message_id", messageID,
			"error", err)
		return fmt.Errorf("loading message: %w", err)
	}

	e.fanOut(e.registry.HandlesFor(msg.Sender), events.MessageRead{
		MessageID: msg.ID,
		Status:    string(store.StatusRead),
		ReadBy:    reader,
	})
	return nil
}

// Typing relays a typing indicator to recipient's live connections. Offline
// recipients are ignored.
func (e *Engine) Typing(origin presence.Handle, recipient string, isTyping bool) {
	e.fanOut(e.registry.HandlesFor(recipient), events.UserTyping{
		Sender:   origin.Identity(),
		IsTyping: isTyping,
	})
}

// OnlineStatus answers origin with identity's current liveness.
func (e *Engine) OnlineStatus(origin presence.Handle, identity string) {
	e.emit(origin, events.OnlineStatus{
		Identity: identity,
		IsOnline: e.registry.IsOnline(identity),
	})
}

// notifySender sends ev to origin, then once to each other live connection of
// origin's identity.
func (e *Engine) notifySender(origin presence.Handle, ev events.Outbound) {
	e.emit(origin, ev)
	for _, h := range e.registry.HandlesFor(origin.Identity()) {
		if h.ID() == origin.ID() {
			continue
		}
		e.emit(h, ev)
	}
}

// fanOut emits ev to every handle. A failing handle does not affect the others.
func (e *Engine) fanOut(handles []presence.Handle, ev events.Outbound) {
	for _, h := range handles {
		e.emit(h, ev)
	}
}

func (e *Engine) emit(h presence.Handle, ev events.Outbound) {
	if err := h.Send(ev); err != nil {
		e.metrics.EmitFailed()
		e.logger.Warn("failed to emit event",
			"session_id", h.ID(),
			"identity", h.Identity(),
			"type", ev.OutboundType(),
			"error", err)
	}
}

func (e *Engine) payload(msg *store.Message, html string) events.MessagePayload {
	return events.MessagePayload{
		MessageID:     msg.ID,
		Sender:        msg.Sender,
		Recipient:     msg.Recipient,
		Content:       msg.Content,
		Timestamp:     events.FormatTimestamp(msg.CreatedAt),
		Status:        string(msg.Status),
		IsBotResponse: msg.IsBotResponse,
		ContentHTML:   html,
	}
}

func (e *Engine) render(reply string) string {
	if e.renderer == nil {
		return ""
	}
	html, err := e.renderer.Render(reply)
	if err != nil {
		e.logger.Warn("failed to render bot reply", "error", err)
		return ""
	}
	return html
}

func (e *Engine) isBot(identity string) bool {
	return e.botIdentity != "" && identity == e.botIdentity
}

// preview truncates content for debug logs.
func preview(content string) string {
	const limit = 50
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	return string([]rune(content)[:limit]) + "..."
}
