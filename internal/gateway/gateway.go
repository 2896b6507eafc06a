// ABOUTME: Gateway orchestrator that wires the store, presence registry, engine, and HTTP server
// ABOUTME: Serves the authenticated /ws upgrade plus health, readiness, and metrics endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/2389/ease-gateway/internal/auth"
	"github.com/2389/ease-gateway/internal/config"
	"github.com/2389/ease-gateway/internal/delivery"
	"github.com/2389/ease-gateway/internal/markdown"
	"github.com/2389/ease-gateway/internal/metrics"
	"github.com/2389/ease-gateway/internal/presence"
	"github.com/2389/ease-gateway/internal/responder"
	"github.com/2389/ease-gateway/internal/session"
	"github.com/2389/ease-gateway/internal/store"
)

// Gateway orchestrates the ease-gateway server components.
type Gateway struct {
	config     *config.Config
	store      store.Store
	registry   *presence.Registry
	engine     *delivery.Engine
	bot        *responder.Bot
	metrics    *metrics.Metrics
	verifier   *auth.JWTVerifier
	httpServer *http.Server
	logger     *slog.Logger

	// sessionCtx is canceled on shutdown to end hijacked websocket sessions,
	// which http.Server.Shutdown does not track.
	sessionCtx    context.Context
	stopSessions  context.CancelFunc
	sessions      sync.WaitGroup
	shutdownOnce  sync.Once
	shutdownError error
}

// initStore creates and returns the message store.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initBot builds the responder from config. It returns nil when the bot is disabled.
func initBot(cfg config.BotConfig, logger *slog.Logger) (*responder.Bot, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}

	var intents []responder.Intent
	if cfg.IntentsFile != "" {
		var err error
		intents, err = responder.LoadIntents(cfg.IntentsFile)
		if err != nil {
			return nil, fmt.Errorf("loading bot intents: %w", err)
		}
	}

	bot, err := responder.New(responder.Config{
		Identity:    cfg.Identity,
		Name:        cfg.Name,
		Intents:     intents,
		HistorySize: cfg.HistorySize,
		MemoryTTL:   cfg.MemoryTTL,
		MaxUsers:    cfg.MaxUsers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating bot: %w", err)
	}
	return bot, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating token verifier: %w", err)
	}

	bot, err := initBot(cfg.Bot, logger)
	if err != nil {
		return nil, err
	}

	s, err := initStore(cfg)
	if err != nil {
		if bot != nil {
			bot.Close()
		}
		return nil, err
	}

	registry := presence.NewRegistry(logger)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(registry.OnlineCount)
	}

	opts := delivery.Options{
		Renderer: markdown.New(),
		Metrics:  m,
		Logger:   logger,
	}
	if bot != nil {
		opts.BotIdentity = bot.Identity()
		opts.Responder = bot
	}

	sessionCtx, stopSessions := context.WithCancel(context.Background())
	gw := &Gateway{
		config:       cfg,
		store:        s,
		registry:     registry,
		engine:       delivery.New(s, registry, opts),
		bot:          bot,
		metrics:      m,
		verifier:     verifier,
		logger:       logger.With("component", "gateway"),
		sessionCtx:   sessionCtx,
		stopSessions: stopSessions,
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	// Websocket upgrade - token checked before the handshake
	requireAuth := auth.HTTPAuthMiddleware(g.verifier, g.logger)
	mux.Handle("/ws", requireAuth(http.HandlerFunc(g.handleWebSocket)))

	if g.metrics != nil {
		mux.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	return mux
}

// handleWebSocket upgrades an authenticated request and runs its session
// until the connection ends.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	if bot := g.engine.BotIdentity(); bot != "" && identity == bot {
		g.logger.Warn("refused connection for reserved identity", "identity", identity, "remote", r.RemoteAddr)
		http.Error(w, `{"error":"reserved identity"}`, http.StatusForbidden)
		return
	}

	// Counted before the upgrade so Shutdown cannot miss a session that is
	// hijacked while the HTTP server drains.
	g.sessions.Add(1)
	defer g.sessions.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.config.Sessions.AllowedOrigins,
	})
	if err != nil {
		// Accept has already written the HTTP error response.
		g.logger.Debug("websocket upgrade failed", "identity", identity, "error", err)
		return
	}

	sess := session.New(
		session.NewWebSocketTransport(conn, g.config.Sessions.ReadLimit),
		g.engine,
		g.registry,
		session.Options{
			SendBuffer:   g.config.Sessions.SendBuffer,
			WriteTimeout: g.config.Sessions.WriteTimeout,
			RateLimit:    g.config.Sessions.RateLimit,
			RateBurst:    g.config.Sessions.RateBurst,
			Metrics:      g.metrics,
			Logger:       g.logger,
		},
	)
	if err := sess.Authenticate(identity); err != nil {
		g.logger.Error("failed to bind session", "identity", identity, "error", err)
		sess.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(g.sessionCtx, cancel)
	defer stop()

	if err := sess.Run(ctx); err != nil {
		g.logger.Debug("session ended with error", "session_id", sess.ID(), "error", err)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The original context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting connections, closes live sessions, and releases
// the store. It is safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownError = g.shutdown(ctx)
	})
	return g.shutdownError
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "sessions", g.registry.HandleCount())

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.stopSessions()
	drained := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for sessions: %w", ctx.Err()))
	}

	if g.bot != nil {
		g.bot.Close()
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// pinger is implemented by stores that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleReady returns 200 with the number of online identities once the
// store is reachable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := g.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			g.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d online)", g.registry.OnlineCount())
}
