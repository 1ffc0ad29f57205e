package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/researchhub/internal/metrics"
	"github.com/BaSui01/researchhub/types"
)

const instrumentationName = "github.com/BaSui01/researchhub/llm"

// Instrumented records metrics and a span around every request.
type Instrumented struct {
	next         Reasoner
	metrics      *metrics.Collector
	tracer       trace.Tracer
	defaultModel string
}

// NewInstrumented wraps next. defaultModel labels requests that do not name one.
func NewInstrumented(next Reasoner, m *metrics.Collector, defaultModel string) *Instrumented {
	return &Instrumented{
		next:         next,
		metrics:      m,
		tracer:       otel.Tracer(instrumentationName),
		defaultModel: defaultModel,
	}
}

// WithTracerProvider replaces the tracer, mostly for tests.
func (i *Instrumented) WithTracerProvider(tp trace.TracerProvider) *Instrumented {
	i.tracer = tp.Tracer(instrumentationName)
	return i
}

func (i *Instrumented) Reason(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = i.defaultModel
	}
	ctx, span := i.tracer.Start(ctx, "llm.reason",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("llm.max_tokens", req.MaxTokens),
		))
	defer span.End()

	start := time.Now()
	resp, err := i.next.Reason(ctx, req)
	dur := time.Since(start)

	if err != nil {
		code := types.GetErrorCode(err)
		if code == "" {
			code = types.ErrUpstreamError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		i.metrics.RecordReasoningRequest(model, string(code), dur, 0, 0)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("llm.tokens.input", resp.Usage.InputTokens),
		attribute.Int64("llm.tokens.output", resp.Usage.OutputTokens),
	)
	i.metrics.RecordReasoningRequest(model, "success", dur, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}
