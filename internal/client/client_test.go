// ABOUTME: Tests for gateway dispatch and history calls
// ABOUTME: Uses httptest servers that mimic the gateway's JSON responses

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/chat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler, opts ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o := Options{BaseURL: srv.URL + "/", Logger: testLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return New(o)
}

func withToken(token string) func(*Options) {
	return func(o *Options) { o.Token = token }
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDispatch_Accepted(t *testing.T) {
	var got chat.AgentRequest
	var gotAuth, gotPath, gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "request_id": got.RequestID})
	}), withToken("tok"))

	req := chat.AgentRequest{Query: "hello", UserID: "u1", RequestID: "r1", SessionID: "S1"}
	require.NoError(t, c.Dispatch(context.Background(), req))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/agent", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, req, got)
}

func TestDispatch_DuplicateIsAck(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	}))

	err := c.Dispatch(context.Background(), chat.AgentRequest{Query: "q", RequestID: "r1", SessionID: "S1"})
	assert.NoError(t, err)
}

func TestDispatch_NoTokenNoHeader(t *testing.T) {
	var hasAuth bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusAccepted)
	}))

	require.NoError(t, c.Dispatch(context.Background(), chat.AgentRequest{Query: "q", RequestID: "r1", SessionID: "S1"}))
	assert.False(t, hasAuth)
}

func TestDispatch_Rejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	}))

	err := c.Dispatch(context.Background(), chat.AgentRequest{Query: "q", RequestID: "r1", SessionID: "S1"})
	require.Error(t, err)

	var dispatchErr *chat.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "r1", dispatchErr.RequestID)
	assert.Equal(t, http.StatusTooManyRequests, dispatchErr.StatusCode)
	assert.Contains(t, dispatchErr.Err.Error(), "rate limit exceeded")
}

func TestDispatch_PlainTextError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	err := c.Dispatch(context.Background(), chat.AgentRequest{Query: "q", RequestID: "r1", SessionID: "S1"})

	var dispatchErr *chat.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, http.StatusBadGateway, dispatchErr.StatusCode)
	assert.Contains(t, dispatchErr.Err.Error(), "upstream down")
}

func TestDispatch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := New(Options{BaseURL: baseURL, Logger: testLogger()})
	err := c.Dispatch(context.Background(), chat.AgentRequest{Query: "q", RequestID: "r1", SessionID: "S1"})

	var dispatchErr *chat.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Zero(t, dispatchErr.StatusCode)
	assert.Equal(t, "r1", dispatchErr.RequestID)
}

func TestDispatch_ContextCanceled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Dispatch(ctx, chat.AgentRequest{Query: "q", RequestID: "r1", SessionID: "S1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSessionRows(t *testing.T) {
	rows := []chat.Row{
		{Seq: 1, ID: "m1", SessionID: "a b", Message: chat.Payload{Type: chat.TypeHuman, Content: "foo"}},
		{Seq: 3, ID: "m3", SessionID: "a b", Message: chat.Payload{Type: chat.TypeAI, Content: "bar"}},
	}

	var gotSession, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages", r.URL.Path)
		gotSession = r.URL.Query().Get("session_id")
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"session_id": gotSession, "rows": rows})
	}), withToken("tok"))

	got, err := c.SessionRows(context.Background(), "a b")
	require.NoError(t, err)

	assert.Equal(t, "a b", gotSession, "session id is query-escaped and round-trips")
	assert.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, int64(3), got[1].Seq)
	assert.Equal(t, chat.TypeAI, got[1].Message.Type)
}

func TestAllRows(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{"rows": []chat.Row{
			{ID: "m1", SessionID: "S1", Message: chat.Payload{Type: chat.TypeHuman, Content: "x"}},
		}})
	}))

	got, err := c.AllRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rawQuery)
	assert.Len(t, got, 1)
}

func TestFetchRows_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}))

		_, err := c.AllRows(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token")
	})

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		}))

		_, err := c.SessionRows(context.Background(), "S1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding messages")
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{BaseURL: "http://gw/"})

	assert.Equal(t, "http://gw", c.baseURL)
	assert.Equal(t, defaultReconnectMin, c.reconnectMin)
	assert.Equal(t, defaultReconnectMax, c.reconnectMax)
	assert.NotNil(t, c.client)
}
