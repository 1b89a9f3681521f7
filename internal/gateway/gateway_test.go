// ABOUTME: Tests for gateway construction, lifecycle and health endpoint
// ABOUTME: Shared helpers build gateways on MockStore with a scripted responder

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/store"
)

// testConfig creates a minimal config for testing with an available port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := httpListener.Addr().String()
	httpListener.Close()

	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr: httpAddr,
		},
		Database: config.DatabaseConfig{
			Path: ":memory:",
		},
		Agent: config.AgentConfig{
			ReplyTimeout: 5 * time.Second,
		},
		RateLimit: config.RateLimitConfig{
			RequestsPerMinute: 600,
			Burst:             100,
		},
		Dedupe: config.DedupeConfig{
			TTL:     time.Minute,
			MaxSize: 100,
		},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// replyResponder answers "reply: <query>".
var replyResponder = conversation.ResponderFunc(
	func(ctx context.Context, req chat.AgentRequest, history []chat.Row) (string, error) {
		return "reply: " + req.Query, nil
	})

// newTestGatewayWithConfig builds a gateway from cfg on a fresh MockStore. Later
// options override the defaults.
func newTestGatewayWithConfig(t *testing.T, cfg *config.Config, opts ...Option) (*Gateway, *store.MockStore) {
	t.Helper()

	ms := store.NewMockStore()
	opts = append([]Option{WithStore(ms), WithResponder(replyResponder)}, opts...)

	gw, err := New(cfg, testLogger(), opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw, ms
}

func newTestGateway(t *testing.T, opts ...Option) (*Gateway, *store.MockStore) {
	t.Helper()
	return newTestGatewayWithConfig(t, testConfig(t), opts...)
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)
	logger := testLogger()

	gw, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	if gw.config != cfg {
		t.Error("gateway config mismatch")
	}

	if gw.store == nil {
		t.Error("store should not be nil")
	}

	if gw.verifier != nil {
		t.Error("verifier should be nil without a JWT secret")
	}

	if gw.limiter == nil {
		t.Error("limiter should be set when rate limiting is enabled")
	}
}

func TestGatewayNew_RateLimitDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.RequestsPerMinute = 0

	gw, _ := newTestGatewayWithConfig(t, cfg)

	if gw.limiter != nil {
		t.Error("limiter should be nil when requests_per_minute is 0")
	}
}

func TestGatewayNew_WeakSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := New(cfg, testLogger(), WithStore(store.NewMockStore()))
	if err == nil {
		t.Fatal("expected error for weak JWT secret")
	}
}

func TestGatewayRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	logger := testLogger()

	gw, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Run gateway in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	// Give it time to start
	time.Sleep(100 * time.Millisecond)

	// Shutdown via context cancel
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("gateway did not shutdown in time")
	}
}

func TestGatewayRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.HTTPAddr = ln.Addr().String()
	gw, _ := newTestGatewayWithConfig(t, cfg)

	if err := gw.Run(t.Context()); err == nil {
		t.Fatal("expected error when address is in use")
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	gw, _ := newTestGatewayWithConfig(t, cfg)

	ctx := t.Context()

	// Run gateway
	go func() {
		_ = gw.Run(ctx)
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	// Health never requires a token
	resp, err := http.Get("http://" + cfg.Server.HTTPAddr + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("health body = %q, want %q", body, "OK")
	}
}

func TestShutdown_WaitsForAgentReplies(t *testing.T) {
	slow := conversation.ResponderFunc(func(ctx context.Context, req chat.AgentRequest, history []chat.Row) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "late reply", nil
	})
	gw, ms := newTestGateway(t, WithResponder(slow))

	req := chat.AgentRequest{Query: "hi", UserID: "u", RequestID: "req-1", SessionID: "S1"}
	if err := gw.conversation.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if err := gw.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	rows, err := ms.ListSession(context.Background(), "S1")
	if err != nil {
		t.Fatalf("ListSession() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected query and reply rows after shutdown, got %d", len(rows))
	}
	if rows[1].Message.Content != "late reply" {
		t.Errorf("reply content = %q, want %q", rows[1].Message.Content, "late reply")
	}
}
