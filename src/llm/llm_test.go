package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Model: "m"})
	assert.Error(t, err, "missing API key")
	_, err = New(Config{APIKey: "k"})
	assert.Error(t, err, "missing model")
	c, err := New(Config{APIKey: "k", Model: "m", BaseURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "http://x", c.cfg.BaseURL)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "k", Model: "vision", Providers: []string{"p1"}, BaseURL: srv.URL})
	require.NoError(t, err)
	c.delay = time.Millisecond
	return c
}

func TestQueryVisionSendsRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vision", req.Model)
		require.NotNil(t, req.Provider)
		assert.Equal(t, []string{"p1"}, req.Provider.Order)
		assert.Contains(t, req.Messages[0].Content[0].Text, "de, en")
		assert.Contains(t, req.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,")

		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: ResponseMessage{Content: "hello\nworld</image>"}}}})
	})

	text, err := c.QueryVision(context.Background(), []byte{1, 2, 3}, []string{"de", "en"})
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)
}

func TestQueryVisionNoText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: ResponseMessage{Content: "NO_TEXT_FOUND"}}}})
	})
	_, err := c.QueryVision(context.Background(), []byte{1}, nil)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestQueryVisionRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(ChatResponse{Error: &APIError{Message: "upstream", Type: "server"}})
			return
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: ResponseMessage{Content: "ok"}}}})
	})
	text, err := c.QueryVision(context.Background(), []byte{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
}

func TestQueryVisionGivesUp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("{}"))
	})
	_, err := c.QueryVision(context.Background(), []byte{1}, nil)
	assert.ErrorContains(t, err, "failed after 3 attempts")
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.ErrorContains(t, c.Ping(context.Background()), "401")
}
