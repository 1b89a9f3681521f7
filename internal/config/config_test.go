// ABOUTME: Tests for gateway configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:9090"

database:
  path: "./test.db"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  token_ttl: "24h"

agent:
  reply_timeout: "45s"
  delay: "250ms"

rate_limit:
  requests_per_minute: 12
  burst: 3

dedupe:
  ttl: "5m"
  max_size: 500

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Agent.ReplyTimeout != 45*time.Second {
		t.Errorf("Agent.ReplyTimeout = %v, want 45s", cfg.Agent.ReplyTimeout)
	}
	if cfg.Agent.Delay != 250*time.Millisecond {
		t.Errorf("Agent.Delay = %v, want 250ms", cfg.Agent.Delay)
	}
	if cfg.RateLimit.RequestsPerMinute != 12 || cfg.RateLimit.Burst != 3 {
		t.Errorf("RateLimit = %+v, want 12/min burst 3", cfg.RateLimit)
	}
	if cfg.Dedupe.TTL != 5*time.Minute || cfg.Dedupe.MaxSize != 500 {
		t.Errorf("Dedupe = %+v, want 5m/500", cfg.Dedupe)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", "database:\n  path: gw.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want default", cfg.Server.HTTPAddr)
	}
	if cfg.Agent.ReplyTimeout != DefaultReplyTimeout {
		t.Errorf("Agent.ReplyTimeout = %v, want default", cfg.Agent.ReplyTimeout)
	}
	if cfg.RateLimit.RequestsPerMinute != DefaultRequestsPerMinute || cfg.RateLimit.Burst != DefaultBurst {
		t.Errorf("RateLimit = %+v, want defaults", cfg.RateLimit)
	}
	if cfg.Dedupe.TTL != DefaultDedupeTTL || cfg.Dedupe.MaxSize != DefaultDedupeSize {
		t.Errorf("Dedupe = %+v, want defaults", cfg.Dedupe)
	}
	if cfg.Auth.JWTSecret != "" {
		t.Error("auth should be disabled by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_RateLimitCanBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", `
database:
  path: gw.db
rate_limit:
  requests_per_minute: 0
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RateLimit.RequestsPerMinute != 0 {
		t.Errorf("RequestsPerMinute = %v, want 0", cfg.RateLimit.RequestsPerMinute)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CHAT_DB", "/var/lib/chat/gw.db")
	t.Setenv("TEST_CHAT_SECRET", "an-environment-secret-of-32-bytes")

	cfg, err := Load(writeConfig(t, "config.yaml", `
database:
  path: "${TEST_CHAT_DB}"
auth:
  jwt_secret: "${TEST_CHAT_SECRET}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/chat/gw.db" {
		t.Errorf("Database.Path = %q, want expanded value", cfg.Database.Path)
	}
	if cfg.Auth.JWTSecret != "an-environment-secret-of-32-bytes" {
		t.Errorf("Auth.JWTSecret = %q, want expanded value", cfg.Auth.JWTSecret)
	}
}

func TestExpandEnvVars_UnsetBecomesEmpty(t *testing.T) {
	got := expandEnvVars("a=${COVEN_CHAT_SURELY_UNSET_VAR};b")
	if got != "a=;b" {
		t.Errorf("expandEnvVars() = %q, want %q", got, "a=;b")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing database path",
			content: "server:\n  http_addr: \":8080\"\n",
			wantErr: "database.path is required",
		},
		{
			name:    "bad duration",
			content: "database:\n  path: x.db\nagent:\n  reply_timeout: soon\n",
			wantErr: "agent.reply_timeout",
		},
		{
			name:    "short secret",
			content: "database:\n  path: x.db\nauth:\n  jwt_secret: short\n",
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "zero burst",
			content: "database:\n  path: x.db\nrate_limit:\n  requests_per_minute: 10\n  burst: 0\n",
			wantErr: "rate_limit.burst",
		},
		{
			name:    "bad log level",
			content: "database:\n  path: x.db\nlogging:\n  level: chatty\n",
			wantErr: "logging.level",
		},
		{
			name:    "invalid yaml",
			content: "database: [unclosed\n",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() should have returned an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}
