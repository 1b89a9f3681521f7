// ABOUTME: Configuration loading for the coven-chat terminal client
// ABOUTME: Loads TOML config with environment variable expansion; missing keys fall back to defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Client defaults.
const (
	DefaultGatewayURL      = "http://127.0.0.1:8080"
	DefaultResponseTimeout = 2 * time.Minute
	DefaultReconnectMin    = time.Second
	DefaultReconnectMax    = 30 * time.Second
)

// ClientConfig is the coven-chat client configuration.
type ClientConfig struct {
	Gateway  ClientGatewayConfig `toml:"gateway"`
	User     UserConfig          `toml:"user"`
	Dispatch DispatchConfig      `toml:"dispatch"`
	Realtime RealtimeConfig      `toml:"realtime"`
	Logging  LoggingConfig       `toml:"logging"`
}

// ClientGatewayConfig locates the gateway and its credentials.
type ClientGatewayConfig struct {
	URL       string `toml:"url"`
	Token     string `toml:"token"`
	TokenFile string `toml:"token_file"`
}

// UserConfig identifies the person typing.
type UserConfig struct {
	ID string `toml:"id"`
}

// DispatchConfig controls outbound requests. A ResponseTimeout of 0
// disables the wait bound.
type DispatchConfig struct {
	ResponseTimeout time.Duration `toml:"response_timeout"`
}

// RealtimeConfig bounds the reconnect backoff of the event stream.
type RealtimeConfig struct {
	ReconnectMin time.Duration `toml:"reconnect_min"`
	ReconnectMax time.Duration `toml:"reconnect_max"`
}

// DefaultClientConfig returns the configuration used when no file exists.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults(nil)
	return cfg
}

// LoadClient reads a TOML client config. A missing file yields the defaults.
func LoadClient(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultClientConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg ClientConfig
	meta, err := toml.Decode(expandEnvVars(string(data)), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing config: unknown keys %s", strings.Join(keys, ", "))
	}

	cfg.applyDefaults(&meta)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills unset fields. meta distinguishes an explicit zero
// response timeout (disabled) from an absent one.
func (c *ClientConfig) applyDefaults(meta *toml.MetaData) {
	if c.Gateway.URL == "" {
		c.Gateway.URL = DefaultGatewayURL
	}
	if c.User.ID == "" {
		c.User.ID = defaultUserID()
	}
	if meta == nil || !meta.IsDefined("dispatch", "response_timeout") {
		c.Dispatch.ResponseTimeout = DefaultResponseTimeout
	}
	if c.Realtime.ReconnectMin == 0 {
		c.Realtime.ReconnectMin = DefaultReconnectMin
	}
	if c.Realtime.ReconnectMax == 0 {
		c.Realtime.ReconnectMax = DefaultReconnectMax
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func defaultUserID() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

// Validate checks that config fields are present and valid.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}
	if c.Gateway.Token != "" && c.Gateway.TokenFile != "" {
		return fmt.Errorf("gateway.token and gateway.token_file are mutually exclusive")
	}
	if c.Dispatch.ResponseTimeout < 0 {
		return fmt.Errorf("dispatch.response_timeout must not be negative")
	}
	if c.Realtime.ReconnectMax < c.Realtime.ReconnectMin {
		return fmt.Errorf("realtime.reconnect_max must be at least realtime.reconnect_min")
	}
	return validateLogging(c.Logging)
}

// ResolveToken returns the bearer token from the config, reading token_file
// if set. An empty result means no token is configured.
func (c *ClientConfig) ResolveToken() (string, error) {
	if c.Gateway.TokenFile == "" {
		return c.Gateway.Token, nil
	}
	data, err := os.ReadFile(c.Gateway.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
