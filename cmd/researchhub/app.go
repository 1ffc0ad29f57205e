package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/agent/orchestrator"
	"github.com/BaSui01/researchhub/agent/persistence"
	"github.com/BaSui01/researchhub/agent/workers"
	"github.com/BaSui01/researchhub/config"
	"github.com/BaSui01/researchhub/internal/metrics"
	"github.com/BaSui01/researchhub/internal/server"
	"github.com/BaSui01/researchhub/internal/telemetry"
	"github.com/BaSui01/researchhub/llm"
	"github.com/BaSui01/researchhub/llm/retry"
)

// app holds the wired runtime for one CLI invocation.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	telemetry    *telemetry.Providers
	metrics      *metrics.Collector
	metricsSrv   *server.Manager
	historySink  io.Closer
	coordinator  *handoff.Coordinator
	orchestrator *orchestrator.Orchestrator
}

// newReasoner builds the Anthropic client from the reasoning section.
func newReasoner(cfg config.ReasoningConfig, logger *zap.Logger) (llm.Reasoner, error) {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	return llm.NewAnthropicReasoner(llm.AnthropicConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
		Retry:     policy,
	}, logger)
}

// newApp wires every component around base. Callers own Close.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, base llm.Reasoner) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.telemetry, err = telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		a.telemetry, err = &telemetry.Providers{}, nil
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = metrics.NewCollectorWithRegistry(cfg.Metrics.Namespace, reg, reg, logger)
		if cfg.Metrics.ListenAddr != "" {
			a.metricsSrv = server.NewMetricsManager(cfg.Metrics.ListenAddr, a.metrics.Handler(), logger)
			if err = a.metricsSrv.Start(); err != nil {
				return nil, err
			}
		}
	}

	reasoner := llm.Reasoner(llm.NewRateLimited(base, cfg.Reasoning.RequestsPerSecond, cfg.Reasoning.Burst, logger))
	reasoner = llm.NewInstrumented(reasoner, a.metrics, cfg.Reasoning.Model).
		WithTracerProvider(a.telemetry.TracerProvider())

	sink, closer, err := persistence.NewHistorySink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.historySink = closer

	roster, err := workers.NewRoster(reasoner, cfg.Workers, logger)
	if err != nil {
		return nil, err
	}
	opts := []handoff.Option{
		handoff.WithLogger(logger),
		handoff.WithMetrics(a.metrics),
		handoff.WithTracerProvider(a.telemetry.TracerProvider()),
		handoff.WithMaxParallel(cfg.Coordinator.MaxParallel),
	}
	if sink != nil {
		opts = append(opts, handoff.WithHistorySink(sink))
	}
	a.coordinator, err = handoff.NewCoordinator(roster, opts...)
	if err != nil {
		return nil, err
	}

	a.orchestrator, err = orchestrator.New(a.coordinator, reasoner,
		orchestrator.WithConfig(cfg.Orchestrator),
		orchestrator.WithPlanDefaults(cfg.Coordinator.DefaultTimeout, cfg.Coordinator.MergeResults),
		orchestrator.WithModel(cfg.Reasoning.Model),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases everything newApp started, in reverse order.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if a.coordinator != nil {
		errs = append(errs, a.coordinator.Close())
	}
	if a.historySink != nil {
		errs = append(errs, a.historySink.Close())
	}
	if a.metricsSrv != nil {
		errs = append(errs, a.metricsSrv.Shutdown(ctx))
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
