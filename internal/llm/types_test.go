package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/studio-agent/internal/errors"
)

func TestAnthropicProvider_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","content":[{"type":"text","text":"Bon"},{"type":"text","text":"jour"}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":3}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", WithBaseURL(srv.URL), WithModel("m-test"), WithLogger(zerolog.Nop()))
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:     []Message{{Role: RoleUser, Content: "salut"}},
		SystemPrompt: "sois bref",
		MaxTokens:    64,
		Temperature:  0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.False(t, resp.Truncated())

	assert.Equal(t, "m-test", got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	assert.Equal(t, "sois bref", got.System)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.4, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "salut", got.Messages[0].Content)
}

func TestAnthropicProvider_Defaults(t *testing.T) {
	p := NewAnthropicProvider("k", WithModel(""), WithMaxTokens(0))
	assert.Equal(t, defaultModel, p.ModelID())
	assert.Equal(t, defaultMaxTokens, p.MaxTokens())

	ar := p.buildRequest(CompletionRequest{Model: "other"})
	assert.Equal(t, "other", ar.Model)
	assert.Equal(t, defaultMaxTokens, ar.MaxTokens)
	assert.Nil(t, ar.Temperature)
}

func TestAnthropicProvider_StatusErrors(t *testing.T) {
	for _, tc := range []struct {
		code     int
		sentinel error
		retry    bool
	}{
		{http.StatusUnauthorized, perrors.ErrAuthFailure, false},
		{http.StatusTooManyRequests, perrors.ErrRateLimit, true},
		{http.StatusServiceUnavailable, perrors.ErrUnavailable, true},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.code)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"x","message":"nope"}}`))
		}))

		p := NewAnthropicProvider("k", WithBaseURL(srv.URL))
		_, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
		srv.Close()

		require.Error(t, err)
		var apiErr *perrors.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, tc.code, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "nope")
		assert.ErrorIs(t, err, tc.sentinel)
		assert.Equal(t, tc.retry, perrors.IsRetryable(err))
	}
}

func TestCompletionResponse_Truncated(t *testing.T) {
	assert.True(t, (&CompletionResponse{StopReason: StopReasonMaxTokens}).Truncated())
	assert.False(t, (&CompletionResponse{StopReason: StopReasonEndTurn}).Truncated())
}
