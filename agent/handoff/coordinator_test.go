package handoff

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/internal/metrics"
	"github.com/BaSui01/researchhub/types"
)

func TestNewCoordinator_RejectsBadRegistry(t *testing.T) {
	_, err := NewCoordinator([]Worker{nil})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))

	_, err = NewCoordinator([]Worker{&scriptedWorker{id: "ghost"}})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))

	_, err = NewCoordinator([]Worker{&scriptedWorker{id: WorkerQA}, &scriptedWorker{id: WorkerQA}})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))
}

func TestCoordinator_Workers(t *testing.T) {
	c := newTestCoordinator(t, []Worker{
		&scriptedWorker{id: WorkerCitationManager},
		&scriptedWorker{id: WorkerWebResearcher},
	})
	assert.Equal(t, []WorkerID{WorkerWebResearcher, WorkerCitationManager}, c.Workers())
	assert.True(t, c.HasWorker(WorkerWebResearcher))
	assert.False(t, c.HasWorker(WorkerQA))
}

func TestExecuteHandoff_Success(t *testing.T) {
	w := &scriptedWorker{id: WorkerQA, delay: 5 * time.Millisecond}
	c := newTestCoordinator(t, []Worker{w})

	out := c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "why?", map[string]any{"context": "bg"}))

	require.True(t, out.Success)
	assert.Equal(t, WorkerQA, out.Worker)
	assert.Equal(t, "qa_agent:why?", out.Result)
	assert.GreaterOrEqual(t, out.Elapsed, 5*time.Millisecond)
	assert.Equal(t, "bg", w.lastInput()["context"])

	hist := c.History()
	require.Len(t, hist, 1)
	assert.Equal(t, int64(1), hist[0].Seq)
	assert.Empty(t, hist[0].PlanID)
	assert.Equal(t, "why?", hist[0].Handoff.Task())
	assert.False(t, hist[0].Timestamp.IsZero())
}

// 注册表缺失时不调用任何 Worker
func TestExecuteHandoff_UnknownWorker(t *testing.T) {
	ws := roster()
	delete(ws, WorkerCitationManager)
	c := newTestCoordinator(t, asWorkers(ws))

	out := c.ExecuteHandoff(context.Background(), MustHandoff(WorkerCitationManager, "cite", nil))

	assert.False(t, out.Success)
	assert.Equal(t, "unknown worker: citation_manager", out.Error)
	assert.Equal(t, types.ErrUnknownWorker, out.ErrorCode())
	for _, w := range ws {
		assert.Zero(t, w.calls.Load())
	}
	assert.Equal(t, 1, c.HistoryLen())
}

func TestExecuteHandoff_RecoversPanic(t *testing.T) {
	w := NewWorkerFunc(WorkerDocumentAnalyzer, func(context.Context, string, map[string]any) Outcome {
		panic("nil map")
	})
	c := newTestCoordinator(t, []Worker{w})

	out := c.ExecuteHandoff(context.Background(), MustHandoff(WorkerDocumentAnalyzer, "analyze", nil))
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "nil map")
	assert.Equal(t, types.ErrWorkerPanic, out.ErrorCode())
}

func TestExecuteHandoff_WorkerCannotMutateCallerContext(t *testing.T) {
	w := NewWorkerFunc(WorkerQA, func(_ context.Context, _ string, input map[string]any) Outcome {
		input["injected"] = true
		return Succeeded(WorkerQA, "ok", nil)
	})
	c := newTestCoordinator(t, []Worker{w})
	h := MustHandoff(WorkerQA, "q", map[string]any{"a": 1})

	c.ExecuteHandoff(context.Background(), h)
	_, leaked := h.Value("injected")
	assert.False(t, leaked)
	_, leaked = c.History()[0].Handoff.Value("injected")
	assert.False(t, leaked)
}

func TestHistory_ReturnsCopies(t *testing.T) {
	w := &scriptedWorker{id: WorkerQA, result: map[string]any{"answer": "42"}}
	c := newTestCoordinator(t, []Worker{w})
	c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "q", nil))

	h1 := c.History()
	h1[0].Outcome.Result.(map[string]any)["answer"] = "tampered"
	h1[0].Outcome.Metadata = map[string]any{"x": 1}

	h2 := c.History()
	assert.Equal(t, "42", h2[0].Outcome.Result.(map[string]any)["answer"])
	assert.Nil(t, h2[0].Outcome.Metadata)
}

// 场景 A：顺序执行中的失败不会中断后续交接
func TestExecuteSequential_FailureDoesNotHalt(t *testing.T) {
	a := &scriptedWorker{id: WorkerWebResearcher, fail: "search backend down"}
	b := &scriptedWorker{id: WorkerSummaryGenerator, result: "summary"}
	c := newTestCoordinator(t, []Worker{a, b})

	outs := c.ExecuteSequential(context.Background(), []Handoff{
		MustHandoff(WorkerWebResearcher, "search", nil),
		MustHandoff(WorkerSummaryGenerator, "summarize", nil),
	})

	require.Len(t, outs, 2)
	assert.False(t, outs[0].Success)
	assert.Equal(t, "search backend down", outs[0].Error)
	assert.True(t, outs[1].Success)
	assert.Equal(t, "summary", outs[1].Result)
	assert.Equal(t, 2, c.HistoryLen())

	// no engine-side context threading
	_, ok := b.lastInput()[PreviousResultKey]
	assert.False(t, ok)
}

// 场景 B：并行执行按输入顺序返回，总耗时接近最慢的一个
func TestExecuteParallel_OrderAndConcurrency(t *testing.T) {
	ws := []Worker{
		&scriptedWorker{id: WorkerWebResearcher, delay: 250 * time.Millisecond},
		&scriptedWorker{id: WorkerDocumentAnalyzer, delay: 50 * time.Millisecond},
		&scriptedWorker{id: WorkerCitationManager, delay: 150 * time.Millisecond},
	}
	c := newTestCoordinator(t, ws)

	start := time.Now()
	outs := c.ExecuteParallel(context.Background(), []Handoff{
		MustHandoff(WorkerWebResearcher, "a", nil),
		MustHandoff(WorkerDocumentAnalyzer, "b", nil),
		MustHandoff(WorkerCitationManager, "c", nil),
	})
	elapsed := time.Since(start)

	require.Len(t, outs, 3)
	assert.Equal(t, WorkerWebResearcher, outs[0].Worker)
	assert.Equal(t, WorkerDocumentAnalyzer, outs[1].Worker)
	assert.Equal(t, WorkerCitationManager, outs[2].Worker)
	for _, o := range outs {
		assert.True(t, o.Success)
	}
	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond, "parallel dispatch should not serialize workers")
	assert.Equal(t, 3, c.HistoryLen())
}

func TestExecuteParallel_MaxParallel(t *testing.T) {
	var running, peak int64
	track := func(id WorkerID) Worker {
		return NewWorkerFunc(id, func(context.Context, string, map[string]any) Outcome {
			n := atomicAdd(&running, 1)
			atomicMax(&peak, n)
			time.Sleep(20 * time.Millisecond)
			atomicAdd(&running, -1)
			return Succeeded(id, "ok", nil)
		})
	}
	ws := make([]Worker, 0, len(knownWorkers))
	hs := make([]Handoff, 0, len(knownWorkers))
	for _, id := range knownWorkers {
		ws = append(ws, track(id))
		hs = append(hs, MustHandoff(id, "t", nil))
	}
	c := newTestCoordinator(t, ws, WithMaxParallel(2))

	outs := c.ExecuteParallel(context.Background(), hs)
	require.Len(t, outs, len(hs))
	assert.LessOrEqual(t, loadInt(&peak), int64(2))
}

func TestExecuteParallelMerged(t *testing.T) {
	ws := roster()
	ws[WorkerDocumentAnalyzer].fail = "bad pdf"
	c := newTestCoordinator(t, asWorkers(ws))

	outs, merged := c.ExecuteParallelMerged(context.Background(), []Handoff{
		MustHandoff(WorkerWebResearcher, "w", nil),
		MustHandoff(WorkerDocumentAnalyzer, "d", nil),
		MustHandoff(WorkerWebResearcher, "w2", nil),
	})

	require.Len(t, outs, 3)
	require.NotNil(t, merged)
	assert.Equal(t, 2, merged.Succeeded)
	assert.Equal(t, 1, merged.Failed)
	assert.Equal(t, []any{"web_researcher:w", "web_researcher:w2"}, merged.ByWorker[WorkerWebResearcher])
	require.Len(t, merged.Errors, 1)
	assert.Equal(t, 1, merged.Errors[0].Index)
	assert.Equal(t, "bad pdf", merged.Errors[0].Error)
	assert.Equal(t, 0, merged.Results[0].Index)
	assert.Equal(t, 2, merged.Results[1].Index)
	assert.Contains(t, merged.Text(), "[web_researcher]\nweb_researcher:w")
	// outcomes are untouched by the merge
	assert.False(t, outs[1].Success)
}

// 链式执行遇到首个失败即停止
func TestExecuteChain_ShortCircuit(t *testing.T) {
	ws := roster()
	ws[WorkerDocumentAnalyzer].fail = "parse error"
	c := newTestCoordinator(t, asWorkers(ws))

	out, err := c.ExecuteChain(context.Background(), []Handoff{
		MustHandoff(WorkerWebResearcher, "search", nil),
		MustHandoff(WorkerDocumentAnalyzer, "analyze", nil),
		MustHandoff(WorkerSummaryGenerator, "summarize", nil),
	})
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, WorkerDocumentAnalyzer, out.Worker)
	assert.Equal(t, "parse error", out.Error)
	assert.Zero(t, ws[WorkerSummaryGenerator].calls.Load())
	assert.Equal(t, 2, c.HistoryLen())
}

func TestExecuteChain_ThreadsPreviousResult(t *testing.T) {
	ws := roster()
	c := newTestCoordinator(t, asWorkers(ws))
	first := MustHandoff(WorkerWebResearcher, "search", nil)
	second := MustHandoff(WorkerSummaryGenerator, "summarize", map[string]any{"length": "short"})

	out, err := c.ExecuteChain(context.Background(), []Handoff{first, second})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "summary_generator:summarize", out.Result)
	in := ws[WorkerSummaryGenerator].lastInput()
	assert.Equal(t, "web_researcher:search", in[PreviousResultKey])
	assert.Equal(t, "short", in["length"])
	_, touched := second.Value(PreviousResultKey)
	assert.False(t, touched)

	_, hasPrev := ws[WorkerWebResearcher].lastInput()[PreviousResultKey]
	assert.False(t, hasPrev)
}

func TestExecuteChain_Empty(t *testing.T) {
	c := newTestCoordinator(t, nil)
	_, err := c.ExecuteChain(context.Background(), nil)
	assert.True(t, types.IsErrorCode(err, types.ErrPlanValidation))
}

// 条件执行在谓词为 false 时提前结束
func TestExecuteConditional_EarlyExit(t *testing.T) {
	ws := roster()
	ws[WorkerDocumentAnalyzer].fail = "empty document"
	c := newTestCoordinator(t, asWorkers(ws))

	outs, err := c.ExecuteConditional(context.Background(), []Handoff{
		MustHandoff(WorkerWebResearcher, "a", nil),
		MustHandoff(WorkerDocumentAnalyzer, "b", nil),
		MustHandoff(WorkerSummaryGenerator, "c", nil),
	}, SucceededOnly)
	require.NoError(t, err)

	require.Len(t, outs, 2)
	assert.False(t, SucceededOnly(outs[1]))
	assert.Zero(t, ws[WorkerSummaryGenerator].calls.Load())
}

func TestExecuteConditional_RequiresCondition(t *testing.T) {
	w := &scriptedWorker{id: WorkerQA}
	c := newTestCoordinator(t, []Worker{w})

	outs, err := c.ExecuteConditional(context.Background(), []Handoff{MustHandoff(WorkerQA, "q", nil)}, nil)
	require.Error(t, err)
	assert.Nil(t, outs)
	assert.True(t, types.IsErrorCode(err, types.ErrPlanValidation))
	assert.Zero(t, w.calls.Load())
}

func TestClearHistory(t *testing.T) {
	c := newTestCoordinator(t, []Worker{&scriptedWorker{id: WorkerQA}})
	c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "1", nil))
	c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "2", nil))
	require.Equal(t, 2, c.HistoryLen())

	c.ClearHistory()
	assert.Zero(t, c.HistoryLen())
	assert.Empty(t, c.History())

	c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "3", nil))
	assert.Equal(t, int64(3), c.History()[0].Seq)
}

func TestFailuresAndTimingReport(t *testing.T) {
	ws := roster()
	ws[WorkerQA].fail = "no answer"
	c := newTestCoordinator(t, asWorkers(ws))

	c.ExecuteSequential(context.Background(), []Handoff{
		MustHandoff(WorkerQA, "q1", nil),
		MustHandoff(WorkerWebResearcher, "w", nil),
		MustHandoff(WorkerQA, "q2", nil),
	})

	fails := c.Failures()
	require.Len(t, fails, 2)
	assert.Equal(t, "q1", fails[0].Handoff.Task())
	assert.Equal(t, "q2", fails[1].Handoff.Task())

	report := c.TimingReport()
	assert.Equal(t, 3, report.Entries)
	require.Len(t, report.Workers, 2)
	assert.Equal(t, WorkerWebResearcher, report.Workers[0].Worker)
	assert.Equal(t, WorkerQA, report.Workers[1].Worker)
	assert.Equal(t, 2, report.Workers[1].Calls)
	assert.Equal(t, 2, report.Workers[1].Failures)
}

func TestHistorySink_MirrorsAndIgnoresErrors(t *testing.T) {
	good := &memorySink{}
	bad := &memorySink{err: errSinkDown}
	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorWithRegistry("hub_sink", reg, reg, zap.NewNop())

	c := newTestCoordinator(t, []Worker{&scriptedWorker{id: WorkerQA}},
		WithHistorySink(good), WithHistorySink(bad), WithMetrics(m))

	out := c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "q", nil))
	assert.True(t, out.Success)
	require.NoError(t, c.Close())
	assert.Equal(t, 1, good.len())
	assert.Equal(t, 1, c.HistoryLen())

	expected := `
# HELP hub_sink_history_sink_errors_total Total number of failed history mirror writes
# TYPE hub_sink_history_sink_errors_total counter
hub_sink_history_sink_errors_total{sink="memory"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "hub_sink_history_sink_errors_total"))
}

// blockingSink holds every write until release is closed.
type blockingSink struct {
	memorySink
	release chan struct{}
}

func (s *blockingSink) Record(ctx context.Context, e HistoryEntry) error {
	<-s.release
	return s.memorySink.Record(ctx, e)
}

func TestHistorySink_SlowSinkDoesNotDelayPlan(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	c := newTestCoordinator(t, asWorkers(roster()), WithHistorySink(sink))

	plan, err := NewPlan(StrategySequential, []Handoff{
		MustHandoff(WorkerWebResearcher, "w", nil),
		MustHandoff(WorkerDocumentAnalyzer, "a", nil),
		MustHandoff(WorkerSummaryGenerator, "s", nil),
	}, WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	res, err := c.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.True(t, res.AllSucceeded())
	assert.Equal(t, 3, c.HistoryLen())
	assert.Zero(t, sink.len())

	close(sink.release)
	require.NoError(t, c.Close())
	require.Equal(t, 3, sink.len())
	for i, e := range sink.entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, plan.ID(), e.PlanID)
	}
}

func TestHistorySink_AfterClose(t *testing.T) {
	sink := &memorySink{}
	c := newTestCoordinator(t, []Worker{&scriptedWorker{id: WorkerQA}}, WithHistorySink(sink))

	c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "q1", nil))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	out := c.ExecuteHandoff(context.Background(), MustHandoff(WorkerQA, "q2", nil))
	assert.True(t, out.Success)
	assert.Equal(t, 2, c.HistoryLen())
	assert.Equal(t, 1, sink.len())
}

func TestCoordinator_CloseWithoutSinks(t *testing.T) {
	c := newTestCoordinator(t, asWorkers(roster()))
	assert.NoError(t, c.Close())
}

func TestCoordinator_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorWithRegistry("hub_coord", reg, reg, zap.NewNop())
	ws := roster()
	ws[WorkerQA].fail = "nope"
	c := newTestCoordinator(t, asWorkers(ws), WithMetrics(m))

	plan, err := NewPlan(StrategySequential, []Handoff{
		MustHandoff(WorkerWebResearcher, "w", nil),
		MustHandoff(WorkerQA, "q", nil),
	})
	require.NoError(t, err)
	_, err = c.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "hub_coord_handoffs_total", "hub_coord_plans_total", "hub_coord_history_entries")
	require.NoError(t, err)
	assert.Equal(t, 4, n) // two handoff series, one plan series, one gauge
}

func TestCoordinator_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c := newTestCoordinator(t, asWorkers(roster()), WithTracerProvider(tp))
	plan, err := NewPlan(StrategyParallel, []Handoff{
		MustHandoff(WorkerWebResearcher, "w", nil),
		MustHandoff(WorkerCitationManager, "c", nil),
	})
	require.NoError(t, err)
	_, err = c.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)
	var planSpan sdktrace.ReadOnlySpan
	children := 0
	for _, s := range spans {
		switch s.Name() {
		case "handoff.plan":
			planSpan = s
		case "handoff.execute":
			children++
		}
	}
	require.NotNil(t, planSpan)
	assert.Equal(t, 2, children)
	for _, s := range spans {
		if s.Name() == "handoff.execute" {
			assert.Equal(t, planSpan.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}
