package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Coordinator:  DefaultCoordinatorConfig(),
		Reasoning:    DefaultReasoningConfig(),
		Workers:      DefaultWorkersConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		History:      DefaultHistoryConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
		Metrics:      DefaultMetricsConfig(),
	}
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		DefaultTimeout: 300 * time.Second,
		MaxParallel:    0,
		MergeResults:   true,
	}
}

func DefaultReasoningConfig() ReasoningConfig {
	return ReasoningConfig{
		Model:             "claude-sonnet-4-5",
		MaxTokens:         1000,
		Timeout:           60 * time.Second,
		MaxRetries:        2,
		RequestsPerSecond: 0,
		Burst:             4,
	}
}

// DefaultWorkersConfig 各 Worker 的默认输出上限与原有角色保持一致
func DefaultWorkersConfig() WorkersConfig {
	return WorkersConfig{
		WebResearcher:    WorkerConfig{Enabled: true, MaxTokens: 1000},
		DocumentAnalyzer: WorkerConfig{Enabled: true, MaxTokens: 1500},
		SummaryGenerator: WorkerConfig{Enabled: true, MaxTokens: 1000},
		QAAgent:          WorkerConfig{Enabled: true, MaxTokens: 1000},
		CitationManager:  WorkerConfig{Enabled: true, MaxTokens: 800},
	}
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxRetries:         2,
		InitialBackoff:     500 * time.Millisecond,
		MaxBackoff:         5 * time.Second,
		AnalysisMaxTokens:  500,
		SynthesisMaxTokens: 1500,
		ConversationLimit:  100,
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Sink:        "none",
		RedisKey:    "researchhub:history",
		RedisMaxLen: 10000,
		Table:       "handoff_history",
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "researchhub",
		Name:            "researchhub.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "researchhub",
		SampleRate:   0.1,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "researchhub",
	}
}
