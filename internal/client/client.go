// ABOUTME: Gateway API client for coven-chat: agent dispatch and history fetch
// ABOUTME: Implements the engine's AgentClient and HistorySource over HTTP

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/chat"
)

const (
	// requestTimeout bounds dispatch and history calls. The event stream is
	// not bounded.
	requestTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 4096

	defaultReconnectMin = time.Second
	defaultReconnectMax = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string

	// ReconnectMin and ReconnectMax bound the event stream's exponential
	// backoff. Zero values use 1s and 30s.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// OnStatus, when set, is called from the feed goroutine each time the
	// event stream connects (connected true) or drops (err set).
	OnStatus func(connected bool, err error)

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client communicates with the coven-chat-gateway HTTP API.
type Client struct {
	baseURL      string
	token        string
	client       *http.Client
	reconnectMin time.Duration
	reconnectMax time.Duration
	onStatus     func(connected bool, err error)
	logger       *slog.Logger
}

// errorResponse is the JSON body of a gateway error.
type errorResponse struct {
	Error string `json:"error"`
}

// messagesResponse is the JSON body of GET /api/messages.
type messagesResponse struct {
	Rows []chat.Row `json:"rows"`
}

// New creates a new gateway client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reconnectMin := opts.ReconnectMin
	if reconnectMin <= 0 {
		reconnectMin = defaultReconnectMin
	}
	reconnectMax := opts.ReconnectMax
	if reconnectMax < reconnectMin {
		reconnectMax = max(defaultReconnectMax, reconnectMin)
	}

	return &Client{
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		token:        opts.Token,
		client:       httpClient,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
		onStatus:     opts.OnStatus,
		logger:       logger.With("component", "client"),
	}
}

// Dispatch posts req to the agent endpoint. Any 2xx response is an
// acknowledgement, including the gateway's answer to a retried request id.
// Failures are returned as *chat.DispatchError.
func (c *Client) Dispatch(ctx context.Context, req chat.AgentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return &chat.DispatchError{RequestID: req.RequestID, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agent", bytes.NewReader(body))
	if err != nil {
		return &chat.DispatchError{RequestID: req.RequestID, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &chat.DispatchError{RequestID: req.RequestID, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &chat.DispatchError{
			RequestID:  req.RequestID,
			StatusCode: resp.StatusCode,
			Err:        c.handleErrorResponse(resp),
		}
	}

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// SessionRows returns one session's persisted rows in creation order.
func (c *Client) SessionRows(ctx context.Context, sessionID string) ([]chat.Row, error) {
	return c.fetchRows(ctx, url.Values{"session_id": {sessionID}})
}

// AllRows returns every persisted row in creation order.
func (c *Client) AllRows(ctx context.Context) ([]chat.Row, error) {
	return c.fetchRows(ctx, nil)
}

func (c *Client) fetchRows(ctx context.Context, query url.Values) ([]chat.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	target := c.baseURL + "/api/messages"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp)
	}

	var body messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return body.Rows, nil
}

// authorize attaches the bearer token when one is configured.
func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// handleErrorResponse extracts an error message from a non-2xx response.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	// Try to parse as JSON error
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, errResp.Error)
		}
	}

	return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
