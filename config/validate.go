package config

import (
	"fmt"
	"strings"

	"github.com/BaSui01/researchhub/types"
)

// Validate 检查配置，一次性返回全部问题
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Coordinator.DefaultTimeout <= 0 {
		add("coordinator.default_timeout must be positive")
	}
	if c.Coordinator.MaxParallel < 0 {
		add("coordinator.max_parallel must not be negative")
	}

	if c.Reasoning.MaxTokens <= 0 {
		add("reasoning.max_tokens must be positive")
	}
	if c.Reasoning.MaxRetries < 0 {
		add("reasoning.max_retries must not be negative")
	}
	if c.Reasoning.RequestsPerSecond > 0 && c.Reasoning.Burst <= 0 {
		add("reasoning.burst must be positive when rate limiting is enabled")
	}

	for _, name := range []string{"web_researcher", "document_analyzer", "summary_generator", "qa_agent", "citation_manager"} {
		w, _ := c.Workers.Worker(name)
		if w.MaxTokens < 0 {
			add("workers.%s.max_tokens must not be negative", name)
		}
	}

	if c.Orchestrator.MaxRetries < 0 {
		add("orchestrator.max_retries must not be negative")
	}
	if c.Orchestrator.MaxBackoff < c.Orchestrator.InitialBackoff {
		add("orchestrator.max_backoff must not be below initial_backoff")
	}

	switch c.History.Sink {
	case "", "none":
	case "redis":
		if c.Redis.Addr == "" {
			add("redis.addr is required for the redis history sink")
		}
		if c.History.RedisKey == "" {
			add("history.redis_key is required for the redis history sink")
		}
	case "database":
		if c.Database.DSN() == "" {
			add("database.driver %q is not supported", c.Database.Driver)
		}
		if c.History.Table == "" {
			add("history.table is required for the database history sink")
		}
	default:
		add("history.sink %q is not one of none, redis, database", c.History.Sink)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q is invalid", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		add("log.format %q is invalid", c.Log.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return types.Errorf(types.ErrInvalidConfig, "config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
