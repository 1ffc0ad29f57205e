package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/researchhub/types"
)

// RateLimited throttles requests to the wrapped Reasoner with a token bucket.
type RateLimited struct {
	next    Reasoner
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimited allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func NewRateLimited(next Reasoner, rps float64, burst int, logger *zap.Logger) *RateLimited {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("component", "reasoner_rate_limit")),
	}
}

// Reason waits for a token, then delegates.
func (l *RateLimited) Reason(ctx context.Context, req Request) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		l.logger.Debug("rate limit wait aborted", zap.Error(err))
		return nil, types.NewError(types.ErrRateLimited, "rate limit wait aborted").WithCause(err)
	}
	return l.next.Reason(ctx, req)
}
