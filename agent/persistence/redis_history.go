package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/config"
)

const defaultRedisKey = "researchhub:history"

// RedisHistorySink appends history records to a Redis list.
type RedisHistorySink struct {
	client *redis.Client
	key    string
	maxLen int64
	logger *zap.Logger
}

// NewRedisHistorySink connects to Redis and verifies the connection.
func NewRedisHistorySink(redisCfg config.RedisConfig, historyCfg config.HistoryConfig, logger *zap.Logger) (*RedisHistorySink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         redisCfg.Addr,
		Password:     redisCfg.Password,
		DB:           redisCfg.DB,
		PoolSize:     redisCfg.PoolSize,
		MinIdleConns: redisCfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisHistorySinkFromClient(client, historyCfg.RedisKey, historyCfg.RedisMaxLen, logger), nil
}

// NewRedisHistorySinkFromClient wraps an existing client. maxLen <= 0 disables trimming.
func NewRedisHistorySinkFromClient(client *redis.Client, key string, maxLen int64, logger *zap.Logger) *RedisHistorySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisHistorySink{
		client: client,
		key:    key,
		maxLen: maxLen,
		logger: logger.With(zap.String("component", "redis_history_sink")),
	}
}

// Name implements handoff.HistorySink.
func (s *RedisHistorySink) Name() string { return "redis" }

// Key returns the list key records are written to.
func (s *RedisHistorySink) Key() string { return s.key }

// Record implements handoff.HistorySink.
func (s *RedisHistorySink) Record(ctx context.Context, entry handoff.HistoryEntry) error {
	data, err := NewRecord(entry).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, data)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write history record %d: %w", entry.Seq, err)
	}

	s.logger.Debug("history record mirrored",
		zap.Int64("seq", entry.Seq),
		zap.String("worker", string(entry.Handoff.Worker())),
	)
	return nil
}

// Recent returns up to n of the newest records, oldest first. n <= 0 returns all.
func (s *RedisHistorySink) Recent(ctx context.Context, n int64) ([]Record, error) {
	start := int64(0)
	if n > 0 {
		start = -n
	}
	raw, err := s.client.LRange(ctx, s.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		r, err := UnmarshalRecord([]byte(item))
		if err != nil {
			s.logger.Warn("skipping malformed history record", zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Ping checks if the store is healthy.
func (s *RedisHistorySink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisHistorySink) Close() error {
	return s.client.Close()
}
