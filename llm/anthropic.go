package llm

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/llm/retry"
	"github.com/BaSui01/researchhub/types"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1000
)

// AnthropicConfig configures an AnthropicReasoner.
type AnthropicConfig struct {
	APIKey    string        // falls back to ANTHROPIC_API_KEY
	BaseURL   string        // optional, for proxies and tests
	Model     string        // default DefaultModel
	MaxTokens int           // default DefaultMaxTokens
	Timeout   time.Duration // per request; zero leaves it to ctx
	Retry     retry.Policy
}

// AnthropicReasoner implements Reasoner over the Anthropic Messages API.
type AnthropicReasoner struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retry     retry.Policy
	logger    *zap.Logger
}

// NewAnthropicReasoner builds a reasoner. An API key is required.
func NewAnthropicReasoner(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicReasoner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.ErrInvalidConfig, "anthropic api key is not set")
	}

	// retries are handled by llm/retry so that they share our error taxonomy
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	r := &AnthropicReasoner{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
		logger:    logger.With(zap.String("component", "anthropic_reasoner")),
	}
	if r.model == "" {
		r.model = DefaultModel
	}
	if r.maxTokens <= 0 {
		r.maxTokens = DefaultMaxTokens
	}
	return r, nil
}

// Model returns the default model name.
func (r *AnthropicReasoner) Model() string { return r.model }

// Reason sends one user message and returns the concatenated text blocks.
func (r *AnthropicReasoner) Reason(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is empty")
	}
	model := req.Model
	if model == "" {
		model = r.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return retry.Do(ctx, r.retry, r.logger, func(ctx context.Context) (*Response, error) {
		msg, err := r.client.Messages.New(ctx, params)
		if err != nil {
			mapped := mapError(err)
			r.logger.Debug("reasoning request failed",
				zap.String("model", model),
				zap.String("code", string(mapped.Code)),
				zap.Error(err),
			)
			return nil, mapped
		}

		var b strings.Builder
		for _, block := range msg.Content {
			switch v := block.AsAny().(type) {
			case anthropic.TextBlock:
				b.WriteString(v.Text)
			}
		}
		if b.Len() == 0 {
			return nil, types.NewError(types.ErrMalformedResponse, "response carried no text content")
		}
		return &Response{
			Text:       b.String(),
			Model:      string(msg.Model),
			StopReason: string(msg.StopReason),
			Usage: Usage{
				InputTokens:  msg.Usage.InputTokens,
				OutputTokens: msg.Usage.OutputTokens,
			},
		}, nil
	})
}

// mapError converts SDK and transport errors into *types.Error.
func mapError(err error) *types.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return mapStatus(apiErr.StatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, "reasoning request timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrUpstreamError, "reasoning request cancelled").WithCause(err)
	}
	return types.NewError(types.ErrUpstreamError, "reasoning request failed").
		WithCause(err).WithRetryable(true)
}

func mapStatus(status int, cause error) *types.Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.Errorf(types.ErrAuthentication, "authentication failed (%d)", status).WithCause(cause)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, "rate limited by reasoning service").
			WithCause(cause).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.Errorf(types.ErrUpstreamTimeout, "upstream timeout (%d)", status).
			WithCause(cause).WithRetryable(true)
	case status == http.StatusServiceUnavailable || status == 529:
		return types.Errorf(types.ErrServiceUnavailable, "reasoning service unavailable (%d)", status).
			WithCause(cause).WithRetryable(true)
	case status >= 500:
		return types.Errorf(types.ErrUpstreamError, "upstream error (%d)", status).
			WithCause(cause).WithRetryable(true)
	case status >= 400:
		return types.Errorf(types.ErrInvalidRequest, "request rejected (%d)", status).WithCause(cause)
	default:
		return types.Errorf(types.ErrUpstreamError, "unexpected status %d", status).WithCause(cause)
	}
}
