package persistence

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/config"
	"github.com/BaSui01/researchhub/internal/database"
)

// Sink kinds accepted in history.sink.
const (
	SinkNone     = "none"
	SinkRedis    = "redis"
	SinkDatabase = "database"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewHistorySink builds the sink selected by cfg.History.Sink. A nil sink with
// a no-op closer is returned for "none".
func NewHistorySink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (handoff.HistorySink, io.Closer, error) {
	switch cfg.History.Sink {
	case "", SinkNone:
		return nil, nopCloser{}, nil
	case SinkRedis:
		sink, err := NewRedisHistorySink(cfg.Redis, cfg.History, logger)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	case SinkDatabase:
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		sink, err := NewSQLHistorySink(ctx, pool, cfg.History.Table, logger)
		if err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		return sink, sink, nil
	default:
		return nil, nil, fmt.Errorf("unsupported history sink: %s", cfg.History.Sink)
	}
}
