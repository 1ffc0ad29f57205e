package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/researchhub/llm/retry"
	"github.com/BaSui01/researchhub/types"
)

const messageJSON = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "Quantum error "}, {"type": "text", "text": "correction."}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

func writeAPIError(w http.ResponseWriter, status int, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"type":"error","error":{"type":"`+kind+`","message":"test"}}`)
}

func newTestReasoner(t *testing.T, url string, policy retry.Policy) *AnthropicReasoner {
	t.Helper()
	r, err := NewAnthropicReasoner(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Retry:   policy,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

func TestNewAnthropicReasoner_RequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicReasoner(AnthropicConfig{}, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	r, err := NewAnthropicReasoner(AnthropicConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, r.Model())
}

func TestAnthropicReasoner_Reason(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON)
	}))
	defer srv.Close()

	r := newTestReasoner(t, srv.URL, retry.Policy{})
	resp, err := r.Reason(context.Background(), Request{
		System:    "You are a research assistant.",
		Prompt:    "What is QEC?",
		MaxTokens: 256,
	})
	require.NoError(t, err)

	assert.Equal(t, "Quantum error correction.", resp.Text)
	assert.Equal(t, "claude-sonnet-4-5", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
	assert.Equal(t, int64(7), resp.Usage.OutputTokens)

	assert.Equal(t, DefaultModel, body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "You are a research assistant.", system[0].(map[string]any)["text"])
}

func TestAnthropicReasoner_EmptyPrompt(t *testing.T) {
	r := newTestReasoner(t, "http://127.0.0.1:1", retry.Policy{})
	_, err := r.Reason(context.Background(), Request{Prompt: "  "})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestAnthropicReasoner_ErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		kind      string
		code      types.ErrorCode
		retryable bool
	}{
		{http.StatusBadRequest, "invalid_request_error", types.ErrInvalidRequest, false},
		{http.StatusUnauthorized, "authentication_error", types.ErrAuthentication, false},
		{http.StatusTooManyRequests, "rate_limit_error", types.ErrRateLimited, true},
		{http.StatusInternalServerError, "api_error", types.ErrUpstreamError, true},
		{529, "overloaded_error", types.ErrServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tt.status, tt.kind)
			}))
			defer srv.Close()

			r := newTestReasoner(t, srv.URL, retry.Policy{MaxRetries: 0})
			_, err := r.Reason(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestAnthropicReasoner_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeAPIError(w, http.StatusTooManyRequests, "rate_limit_error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON)
	}))
	defer srv.Close()

	r := newTestReasoner(t, srv.URL, retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	resp, err := r.Reason(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Quantum error correction.", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicReasoner_NoTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m","type":"message","role":"assistant","model":"x","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)
	}))
	defer srv.Close()

	r := newTestReasoner(t, srv.URL, retry.Policy{})
	_, err := r.Reason(context.Background(), Request{Prompt: "hi"})
	assert.True(t, types.IsErrorCode(err, types.ErrMalformedResponse))
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, types.ErrAuthentication, mapStatus(http.StatusForbidden, nil).Code)
	assert.Equal(t, types.ErrUpstreamTimeout, mapStatus(http.StatusGatewayTimeout, nil).Code)
	assert.Equal(t, types.ErrServiceUnavailable, mapStatus(http.StatusServiceUnavailable, nil).Code)
	assert.Equal(t, types.ErrInvalidRequest, mapStatus(http.StatusNotFound, nil).Code)
	assert.Equal(t, types.ErrUpstreamTimeout, mapError(context.DeadlineExceeded).Code)
}
