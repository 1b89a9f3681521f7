// ABOUTME: Tests for client TOML configuration loading
// ABOUTME: Covers defaults, explicit zero timeouts, token resolution, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("USER", "ada")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultGatewayURL, cfg.Gateway.URL)
	assert.Equal(t, "ada", cfg.User.ID)
	assert.Equal(t, DefaultResponseTimeout, cfg.Dispatch.ResponseTimeout)
	assert.Equal(t, DefaultReconnectMin, cfg.Realtime.ReconnectMin)
	assert.Equal(t, DefaultReconnectMax, cfg.Realtime.ReconnectMax)
}

func TestLoadClient_ValidConfig(t *testing.T) {
	t.Setenv("TEST_CHAT_TOKEN", "tok-123")

	path := writeConfig(t, "client.toml", `
[gateway]
url = "https://chat.example.com"
token = "${TEST_CHAT_TOKEN}"

[user]
id = "grace"

[dispatch]
response_timeout = "45s"

[realtime]
reconnect_min = "500ms"
reconnect_max = "10s"

[logging]
level = "debug"
`)

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.Gateway.URL)
	assert.Equal(t, "tok-123", cfg.Gateway.Token)
	assert.Equal(t, "grace", cfg.User.ID)
	assert.Equal(t, 45*time.Second, cfg.Dispatch.ResponseTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Realtime.ReconnectMin)
	assert.Equal(t, 10*time.Second, cfg.Realtime.ReconnectMax)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadClient_ZeroTimeoutDisables(t *testing.T) {
	cfg, err := LoadClient(writeConfig(t, "client.toml", "[dispatch]\nresponse_timeout = \"0s\"\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Dispatch.ResponseTimeout)
}

func TestLoadClient_Errors(t *testing.T) {
	tests := map[string]string{
		"bad scheme":         "[gateway]\nurl = \"ftp://example.com\"\n",
		"unknown key":        "[gateway]\nadress = \"http://x\"\n",
		"both tokens":        "[gateway]\ntoken = \"a\"\ntoken_file = \"/tmp/t\"\n",
		"negative timeout":   "[dispatch]\nresponse_timeout = \"-1s\"\n",
		"inverted backoff":   "[realtime]\nreconnect_min = \"1m\"\nreconnect_max = \"1s\"\n",
		"invalid toml":       "[gateway\n",
		"bad logging format": "[logging]\nformat = \"xml\"\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadClient(writeConfig(t, "client.toml", content))
			assert.Error(t, err)
		})
	}
}

func TestClientConfig_ResolveToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("  from-file\n"), 0600))

	cfg := DefaultClientConfig()
	cfg.Gateway.TokenFile = tokenPath

	token, err := cfg.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)

	cfg = DefaultClientConfig()
	cfg.Gateway.Token = "inline"
	token, err = cfg.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "inline", token)
}
