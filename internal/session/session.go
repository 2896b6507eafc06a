// ABOUTME: Connection session state machine: Unauthenticated -> Authenticated -> Closed
// ABOUTME: Reads and dispatches inbound frames in order and drains a bounded outbound queue

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/2389/ease-gateway/internal/events"
	"github.com/2389/ease-gateway/internal/metrics"
	"github.com/2389/ease-gateway/internal/presence"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrSendBufferFull is returned when the outbound queue cannot accept a frame.
	ErrSendBufferFull = errors.New("session send buffer full")

	// ErrNotAuthenticated is returned when an operation needs a bound identity.
	ErrNotAuthenticated = errors.New("session not authenticated")

	// ErrAlreadyAuthenticated is returned when Authenticate is called twice.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
)

// State is a session's lifecycle position.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dispatcher handles decoded inbound events. *delivery.Engine satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, origin presence.Handle, ev events.Inbound) error
}

// Options configures a Session.
type Options struct {
	// SendBuffer is the outbound queue length. Values below 1 are raised to 1.
	SendBuffer int
	// WriteTimeout bounds each frame write. Zero means no per-frame limit.
	WriteTimeout time.Duration
	// RateLimit is the sustained inbound events per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Session is one client connection. It implements presence.Handle.
type Session struct {
	id           string
	transport    Transport
	dispatcher   Dispatcher
	registry     *presence.Registry
	metrics      *metrics.Metrics
	limiter      *rate.Limiter
	writeTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	state    State
	identity string

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ presence.Handle = (*Session)(nil)

// New creates an unauthenticated session over t.
func New(t Transport, d Dispatcher, reg *presence.Registry, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New().String()
	s := &Session{
		id:           id,
		transport:    t,
		dispatcher:   d,
		registry:     reg,
		metrics:      opts.Metrics,
		writeTimeout: opts.WriteTimeout,
		logger:       logger.With("component", "session", "session_id", id),
		state:        StateUnauthenticated,
		out:          make(chan []byte, max(1, opts.SendBuffer)),
		done:         make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, opts.RateBurst))
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Identity returns the bound identity, or "" before authentication.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Authenticate binds the session to identity, registers it with the
// presence registry and queues a connected event for this connection.
func (s *Session) Authenticate(identity string) error {
	if identity == "" {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateAuthenticated:
		s.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	s.identity = identity
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.logger = s.logger.With("identity", identity)
	s.registry.Register(identity, s)
	s.metrics.SessionOpened()

	s.logger.Info("session authenticated")
	return s.Send(events.Connected{Identity: identity})
}

// Send queues ev for the writer goroutine without blocking. A full queue
// closes the session.
func (s *Session) Send(ev events.Outbound) error {
	switch s.State() {
	case StateUnauthenticated:
		return ErrNotAuthenticated
	case StateClosed:
		return ErrClosed
	}

	frame, err := events.Encode(ev)
	if err != nil {
		return err
	}

	select {
	case s.out <- frame:
		return nil
	case <-s.done:
		return ErrClosed
	default:
		s.logger.Warn("send buffer full, closing session", "type", ev.OutboundType())
		// The close handshake can block; the emitting goroutine belongs to
		// another connection.
		go s.Close(websocket.StatusPolicyViolation, "send buffer full")
		return ErrSendBufferFull
	}
}

// Run processes inbound frames until the transport closes or ctx is done.
// Each frame is handled to completion before the next is read. The session
// is closed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	if s.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		frame, err := s.transport.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.Close(websocket.StatusGoingAway, "server shutting down")
				return nil
			}
			if isNormalClose(err) || s.State() == StateClosed {
				s.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			s.logger.Warn("read failed", "error", err)
			s.Close(websocket.StatusInternalError, "read failed")
			return fmt.Errorf("reading frame: %w", err)
		}
		s.handleFrame(ctx, frame)
	}
}

// Close moves the session to StateClosed, deregisters it and closes the
// transport with code. Further calls are no-ops.
func (s *Session) Close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		wasAuthenticated := s.state == StateAuthenticated
		s.state = StateClosed
		s.mu.Unlock()

		close(s.done)

		if wasAuthenticated {
			if identity, offline := s.registry.Deregister(s.id); offline {
				s.logger.Debug("identity went offline", "identity", identity)
			}
			s.metrics.SessionClosed()
		}

		if err := s.transport.Close(code, reason); err != nil {
			s.logger.Debug("transport close", "error", err)
		}
		s.logger.Info("session closed", "code", int(code))
	})
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case frame := <-s.out:
			if err := s.write(ctx, frame); err != nil {
				if !isNormalClose(err) {
					s.logger.Warn("write failed", "error", err)
				}
				s.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (s *Session) write(ctx context.Context, frame []byte) error {
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	return s.transport.Write(ctx, frame)
}

func (s *Session) handleFrame(ctx context.Context, frame []byte) {
	ev, err := events.DecodeInbound(frame)
	typ := frameType(ev, err)

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.InboundEvent(typ, metrics.OutcomeRateLimited)
		s.logger.Debug("inbound event rate limited", "type", typ)
		s.reply(events.Error{Message: events.ErrMsgRateLimited})
		return
	}

	if err != nil {
		s.metrics.InboundEvent(typ, metrics.OutcomeRejected)
		s.reject(typ, err)
		return
	}

	s.metrics.InboundEvent(typ, metrics.OutcomeOK)
	if err := s.dispatcher.Dispatch(ctx, s, ev); err != nil {
		s.logger.Debug("event failed", "type", typ, "error", err)
	}
}

// reject answers a frame that failed decoding. mark_read and typing are
// fire-and-forget on the client side, so their bad frames are dropped quietly.
func (s *Session) reject(typ string, err error) {
	var msg string
	switch {
	case errors.Is(err, events.ErrUnknownType):
		msg = events.ErrMsgUnknownType
	case typ == string(events.TypeSendMessage):
		msg = events.ErrMsgInvalidData
	case typ == string(events.TypeMarkRead), typ == string(events.TypeTyping):
		s.logger.Debug("dropping malformed event", "type", typ, "error", err)
		return
	default:
		msg = events.ErrMsgMalformed
	}
	s.logger.Debug("rejected inbound frame", "type", typ, "error", err)
	s.reply(events.Error{Message: msg})
}

func (s *Session) reply(ev events.Outbound) {
	if err := s.Send(ev); err != nil && !errors.Is(err, ErrClosed) {
		s.metrics.EmitFailed()
		s.logger.Warn("failed to emit event", "type", ev.OutboundType(), "error", err)
	}
}

// frameType returns the event type label for metrics and logs.
func frameType(ev events.Inbound, err error) string {
	if ev != nil {
		return string(ev.InboundType())
	}
	var de *events.DecodeError
	if errors.As(err, &de) && de.Type != "" {
		return string(de.Type)
	}
	return "invalid"
}
