package handoff

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/internal/metrics"
	"github.com/BaSui01/researchhub/types"
)

const instrumentationName = "github.com/BaSui01/researchhub/agent/handoff"

// Coordinator routes handoffs to registered workers and keeps the
// execution history. The registry is read-only after construction.
type Coordinator struct {
	workers     map[WorkerID]Worker
	history     *History
	sinks       []HistorySink
	writer      *sinkWriter
	maxParallel int
	metrics     *metrics.Collector
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. nil falls back to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		if tp != nil {
			c.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMaxParallel caps concurrently running workers in parallel dispatch.
// Zero or negative means unlimited.
func WithMaxParallel(n int) Option {
	return func(c *Coordinator) { c.maxParallel = n }
}

// WithHistorySink mirrors every history entry to sink. Writes happen in the
// background; call Close to flush them.
func WithHistorySink(sink HistorySink) Option {
	return func(c *Coordinator) {
		if sink != nil {
			c.sinks = append(c.sinks, sink)
		}
	}
}

// NewCoordinator builds a Coordinator over the given workers.
func NewCoordinator(workers []Worker, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		workers: make(map[WorkerID]Worker, len(workers)),
		history: NewHistory(),
		tracer:  otel.Tracer(instrumentationName),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "handoff_coordinator"))

	for _, w := range workers {
		if w == nil {
			return nil, types.NewError(types.ErrInvalidConfig, "nil worker in registry")
		}
		id := w.ID()
		if !id.Valid() {
			return nil, types.Errorf(types.ErrInvalidConfig, "worker reports unknown identity %q", id)
		}
		if _, dup := c.workers[id]; dup {
			return nil, types.Errorf(types.ErrInvalidConfig, "duplicate worker %s", id)
		}
		c.workers[id] = w
	}

	if len(c.sinks) > 0 {
		c.writer = newSinkWriter(c.sinks, c.metrics, c.logger)
	}

	c.logger.Info("coordinator initialized",
		zap.Int("workers", len(c.workers)),
		zap.Int("max_parallel", c.maxParallel),
		zap.Int("history_sinks", len(c.sinks)),
	)
	return c, nil
}

// Workers returns the registered identities in canonical order.
func (c *Coordinator) Workers() []WorkerID {
	ids := make([]WorkerID, 0, len(c.workers))
	for id := range c.workers {
		ids = append(ids, id)
	}
	rank := make(map[WorkerID]int, len(knownWorkers))
	for i, id := range knownWorkers {
		rank[id] = i
	}
	sort.Slice(ids, func(i, j int) bool { return rank[ids[i]] < rank[ids[j]] })
	return ids
}

// HasWorker reports whether id is registered.
func (c *Coordinator) HasWorker(id WorkerID) bool {
	_, ok := c.workers[id]
	return ok
}

// ExecuteHandoff runs a single handoff and records it in history.
// It never retries.
func (c *Coordinator) ExecuteHandoff(ctx context.Context, h Handoff) Outcome {
	return c.dispatch(ctx, "", h)
}

// ExecuteHandoffInPlan is ExecuteHandoff with the history entry attributed to
// planID, for callers re-running a step of a finished plan.
func (c *Coordinator) ExecuteHandoffInPlan(ctx context.Context, planID string, h Handoff) Outcome {
	return c.dispatch(ctx, planID, h)
}

func (c *Coordinator) dispatch(ctx context.Context, planID string, h Handoff) Outcome {
	ctx, span := c.tracer.Start(ctx, "handoff.execute",
		trace.WithAttributes(
			attribute.String("handoff.worker", h.Worker().String()),
			attribute.Int("handoff.priority", h.Priority()),
			attribute.String("handoff.plan_id", planID),
		))
	defer span.End()

	c.logger.Debug("dispatching handoff",
		zap.String("worker", h.Worker().String()),
		zap.Int("priority", h.Priority()),
		zap.String("plan_id", planID),
	)

	start := time.Now()
	var out Outcome
	worker, ok := c.workers[h.Worker()]
	switch {
	case !ok:
		out = Failed(h.Worker(), fmt.Sprintf("unknown worker: %s", h.Worker()),
			map[string]any{MetaErrorCode: string(types.ErrUnknownWorker)})
	case ctx.Err() != nil:
		out = interruptedOutcome(ctx, h.Worker())
	default:
		out = c.invoke(ctx, worker, h)
	}
	out.Worker = h.Worker()
	out.Elapsed = time.Since(start)

	c.record(planID, h, out)

	status := "success"
	switch {
	case out.Success:
	case out.TimedOut():
		status = "timeout"
	case out.Cancelled():
		status = "cancelled"
	default:
		status = "failure"
	}
	c.metrics.RecordHandoff(h.Worker().String(), status, out.Elapsed)
	span.SetAttributes(
		attribute.Bool("handoff.success", out.Success),
		attribute.Int64("handoff.elapsed_ms", out.Elapsed.Milliseconds()),
	)
	if !out.Success {
		span.SetStatus(codes.Error, out.Error)
		c.logger.Warn("handoff failed",
			zap.String("worker", h.Worker().String()),
			zap.String("plan_id", planID),
			zap.String("error", out.Error),
			zap.String("error_code", string(out.ErrorCode())),
			zap.Duration("elapsed", out.Elapsed),
		)
	} else {
		c.logger.Debug("handoff completed",
			zap.String("worker", h.Worker().String()),
			zap.String("plan_id", planID),
			zap.Duration("elapsed", out.Elapsed),
		)
	}
	return out
}

type workerReturn struct {
	out Outcome
}

// invoke runs the worker in its own goroutine so that a worker ignoring
// cancellation can be abandoned. The channel is buffered; an abandoned
// worker completes its send and exits.
func (c *Coordinator) invoke(ctx context.Context, w Worker, h Handoff) Outcome {
	done := make(chan workerReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("worker panicked",
					zap.String("worker", h.Worker().String()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				done <- workerReturn{out: Failed(h.Worker(), fmt.Sprintf("worker panicked: %v", r),
					map[string]any{MetaErrorCode: string(types.ErrWorkerPanic)})}
			}
		}()
		done <- workerReturn{out: w.Execute(ctx, h.Task(), h.ContextCopy())}
	}()

	select {
	case r := <-done:
		if ctx.Err() != nil {
			// result arrived after the deadline; discard it
			return interruptedOutcome(ctx, h.Worker())
		}
		return r.out.normalize(h.Worker())
	case <-ctx.Done():
		return interruptedOutcome(ctx, h.Worker())
	}
}

// interruptedOutcome stands in for a handoff that did not complete before
// ctx ended.
func interruptedOutcome(ctx context.Context, worker WorkerID) Outcome {
	cause := context.Cause(ctx)
	if e, ok := types.AsError(cause); ok {
		md := map[string]any{MetaErrorCode: string(e.Code)}
		if e.Code == types.ErrPlanCancelled {
			md[MetaCancelled] = true
		} else {
			md[MetaTimeout] = true
		}
		return Failed(worker, e.Message, md)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failed(worker, "plan timed out", map[string]any{
			MetaTimeout:   true,
			MetaErrorCode: string(types.ErrPlanTimeout),
		})
	}
	return Failed(worker, "plan cancelled", map[string]any{
		MetaCancelled: true,
		MetaErrorCode: string(types.ErrPlanCancelled),
	})
}

func (c *Coordinator) record(planID string, h Handoff, out Outcome) {
	entry := c.history.Append(planID, h, out, c.now())
	c.metrics.SetHistoryEntries(c.history.Len())
	c.writer.enqueue(entry)
}

// Close flushes pending history sink writes. Entries recorded after Close
// are kept in memory but no longer mirrored. Close does not close the sinks.
func (c *Coordinator) Close() error {
	c.writer.close()
	return nil
}

// History returns an ordered copy of the execution log.
func (c *Coordinator) History() []HistoryEntry { return c.history.Entries() }

// HistoryLen returns the number of recorded entries.
func (c *Coordinator) HistoryLen() int { return c.history.Len() }

// ClearHistory empties the execution log.
func (c *Coordinator) ClearHistory() {
	c.history.Clear()
	c.metrics.SetHistoryEntries(0)
	c.logger.Info("history cleared")
}

// Failures returns the failed entries in log order.
func (c *Coordinator) Failures() []HistoryEntry { return c.history.Failures() }

// TimingReport summarises recorded elapsed time per worker.
func (c *Coordinator) TimingReport() TimingReport { return c.history.TimingReport() }
