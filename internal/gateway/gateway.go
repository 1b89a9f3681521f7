// ABOUTME: Gateway orchestrator that coordinates the HTTP server and its components
// ABOUTME: Wires store, conversation service, broadcaster, dedupe cache, rate limiter and auth

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/coven-chat/internal/auth"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/dedupe"
	"github.com/2389/coven-chat/internal/store"
)

// defaultHeartbeatInterval is how often an idle SSE stream gets a comment line.
const defaultHeartbeatInterval = 15 * time.Second

// Gateway orchestrates the coven-chat-gateway server components.
// It records agent requests, runs the responder, and pushes every new row to
// connected clients over Server-Sent Events.
type Gateway struct {
	config       *config.Config
	store        store.Store
	conversation *conversation.Service
	httpServer   *http.Server
	logger       *slog.Logger

	// dedupe short-circuits retried request ids before they reach the store
	dedupe *dedupe.Cache[string]

	// limiter bounds agent requests per user
	limiter *userRateLimiter

	// eventBroadcaster fans out inserted rows to SSE subscribers
	eventBroadcaster *conversation.EventBroadcaster

	// verifier is nil when auth.jwt_secret is unset
	verifier *auth.JWTVerifier

	heartbeatInterval time.Duration
}

// Option customizes a Gateway built by New.
type Option func(*options)

type options struct {
	store             store.Store
	responder         conversation.Responder
	heartbeatInterval time.Duration
}

// WithStore uses s instead of opening the configured SQLite database.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithResponder replaces the built-in echo agent.
func WithResponder(r conversation.Responder) Option {
	return func(o *options) { o.responder = r }
}

// WithHeartbeatInterval sets the SSE keepalive interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) { o.heartbeatInterval = d }
}

// initStore opens the SQLite store at the configured path.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	o := options{heartbeatInterval: defaultHeartbeatInterval}
	for _, opt := range opts {
		opt(&o)
	}

	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	} else {
		logger.Warn("auth.jwt_secret not set, API is unauthenticated")
	}

	s := o.store
	if s == nil {
		var err error
		if s, err = initStore(cfg); err != nil {
			return nil, err
		}
	}

	responder := o.responder
	if responder == nil {
		responder = conversation.EchoAgent{Delay: cfg.Agent.Delay}
	}

	broadcaster := conversation.NewEventBroadcaster(logger)
	s.OnInsert(broadcaster.Publish)

	gw := &Gateway{
		config:            cfg,
		store:             s,
		conversation:      conversation.New(s, responder, cfg.Agent.ReplyTimeout, logger),
		logger:            logger,
		dedupe:            dedupe.New[string](cfg.Dedupe.TTL, cfg.Dedupe.MaxSize),
		limiter:           newUserRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		eventBroadcaster:  broadcaster,
		verifier:          verifier,
		heartbeatInterval: o.heartbeatInterval,
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP routes. The /api/ tree requires a bearer
// token when a JWT secret is configured; /health never does.
func (g *Gateway) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/agent", g.handleAgent)
	api.HandleFunc("/api/messages", g.handleMessages)
	api.HandleFunc("/api/events", g.handleEvents)
	api.HandleFunc("/api/transcript", g.handleTranscript)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	if g.verifier != nil {
		mux.Handle("/api/", auth.HTTPAuthMiddleware(g.verifier)(api))
	} else {
		mux.Handle("/api/", api)
	}
	return mux
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
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

// Shutdown stops accepting requests, waits for in-flight agent runs to
// record their replies, then releases the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// SSE streams end when their subscriptions close.
	g.eventBroadcaster.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.conversation.Wait()
	g.limiter.Close()
	g.dedupe.Close()

	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
