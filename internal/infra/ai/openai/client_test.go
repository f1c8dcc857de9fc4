package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/bryanwahyu/automaton-cpg/internal/domain/ai"
)

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: "gpt-4o"}
}

func TestExplain(t *testing.T) {
	c := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"one root\"}"}}]}`))
	})

	out, err := c.Explain(context.Background(), "main.c:main")
	require.NoError(t, err)
	assert.Contains(t, out, "one root")
}

func TestExplainEmptyChoices(t *testing.T) {
	c := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Explain(context.Background(), "main.c:main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestExplainQuotaExceeded(t *testing.T) {
	c := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	})

	_, err := c.Explain(context.Background(), "main.c:main")
	assert.ErrorIs(t, err, domai.ErrQuotaExceeded)
}
