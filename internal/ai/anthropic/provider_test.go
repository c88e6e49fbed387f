package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/streamtosite/internal/ai"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func textResponse(text string) apiResponse {
	return apiResponse{
		Type:    "message",
		Role:    "assistant",
		Content: []apiContentOutput{{Type: "text", Text: text}},
		Usage:   apiUsage{InputTokens: 100, OutputTokens: 200},
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestDraftPost_ParsesFencedJSON(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req apiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Messages, 1) {
			return
		}
		assert.Contains(t, req.Messages[0].Content[0].Text, "Topic: Sourdough basics")

		json.NewEncoder(w).Encode(textResponse("```json\n{\"title\":\"Sourdough basics\",\"excerpt\":\"Start here.\",\"content\":\"## Flour\"}\n```"))
	})

	draft, err := p.DraftPost(context.Background(), ai.DraftParams{ChannelName: "Bread Lab", Topic: "Sourdough basics"})
	require.NoError(t, err)
	assert.Equal(t, "Sourdough basics", draft.Title)
	assert.Equal(t, "Start here.", draft.Excerpt)
	assert.Equal(t, "## Flour", draft.Content)
	assert.Equal(t, 100, draft.Usage.InputTokens)
	assert.Equal(t, DefaultModel, draft.Usage.Model)
}

func TestDraftPost_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(textResponse(`{"title":"T","excerpt":"E","content":"C"}`))
	})

	draft, err := p.DraftPost(context.Background(), ai.DraftParams{Topic: "x"})
	require.NoError(t, err)
	assert.Equal(t, "T", draft.Title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDraftPost_DoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.DraftPost(context.Background(), ai.DraftParams{Topic: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.EAIUnauthorized))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDraftPost_RejectsEmptyRequest(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := p.DraftPost(context.Background(), ai.DraftParams{})
	assert.True(t, errors.Is(err, ai.EAIInvalidRequest))
}

func TestDraftPost_MissingFields(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse(`{"title":"","content":""}`))
	})

	_, err := p.DraftPost(context.Background(), ai.DraftParams{Topic: "x"})
	assert.Error(t, err)
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ai.EAIRateLimit},
		{http.StatusRequestTimeout, ai.EAITimeout},
		{http.StatusBadGateway, ai.EAIUnavailable},
		{529, ai.EAIUnavailable},
		{http.StatusBadRequest, ai.EAIInvalidRequest},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, mapHTTPError(tt.status, []byte(`{"error":{"message":"nope"}}`)), tt.want, "status %d", tt.status)
	}
}
