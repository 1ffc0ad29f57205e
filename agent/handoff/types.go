package handoff

import (
	"fmt"
	"time"

	"github.com/BaSui01/researchhub/types"
)

// WorkerID identifies one of the worker roles known to the engine.
type WorkerID string

const (
	WorkerWebResearcher    WorkerID = "web_researcher"
	WorkerDocumentAnalyzer WorkerID = "document_analyzer"
	WorkerSummaryGenerator WorkerID = "summary_generator"
	WorkerQA               WorkerID = "qa_agent"
	WorkerCitationManager  WorkerID = "citation_manager"
)

var knownWorkers = []WorkerID{
	WorkerWebResearcher,
	WorkerDocumentAnalyzer,
	WorkerSummaryGenerator,
	WorkerQA,
	WorkerCitationManager,
}

// AllWorkers returns every known worker identity in canonical order.
func AllWorkers() []WorkerID {
	out := make([]WorkerID, len(knownWorkers))
	copy(out, knownWorkers)
	return out
}

// Valid reports whether w belongs to the closed identity set.
func (w WorkerID) Valid() bool {
	for _, k := range knownWorkers {
		if w == k {
			return true
		}
	}
	return false
}

func (w WorkerID) String() string { return string(w) }

// ParseWorkerID converts a name into a WorkerID.
func ParseWorkerID(name string) (WorkerID, error) {
	w := WorkerID(name)
	if !w.Valid() {
		return "", types.Errorf(types.ErrInvalidHandoff, "unknown worker identity %q", name)
	}
	return w, nil
}

// Strategy is the dispatch discipline of a plan.
type Strategy string

const (
	StrategySequential  Strategy = "sequential"
	StrategyParallel    Strategy = "parallel"
	StrategyConditional Strategy = "conditional"
	StrategyChain       Strategy = "chain"
)

// Valid reports whether s is a recognised strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySequential, StrategyParallel, StrategyConditional, StrategyChain:
		return true
	}
	return false
}

func (s Strategy) String() string { return string(s) }

// ParseStrategy converts a name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if !s.Valid() {
		return "", types.Errorf(types.ErrPlanValidation, "unrecognized strategy %q", name)
	}
	return s, nil
}

const (
	// DefaultPriority is the priority assigned when none is given.
	DefaultPriority = 1
	// DefaultPlanTimeout bounds a whole plan when no timeout is given.
	DefaultPlanTimeout = 300 * time.Second
	// PreviousResultKey is the context key chain steps receive the prior result under.
	PreviousResultKey = "previous_result"
)

// Outcome metadata keys set by the engine.
const (
	MetaTimeout   = "timeout"
	MetaCancelled = "cancelled"
	MetaErrorCode = "error_code"
)

// =============================================================================
// Handoff
// =============================================================================

// Handoff is a single request directed at one worker. It is immutable once
// constructed; derive a new value with WithContext instead of editing one.
type Handoff struct {
	worker   WorkerID
	task     string
	context  map[string]any
	priority int
	metadata map[string]any
}

// HandoffOption configures optional Handoff fields.
type HandoffOption func(*Handoff)

// WithPriority sets the advisory priority recorded in history.
func WithPriority(p int) HandoffOption {
	return func(h *Handoff) { h.priority = p }
}

// WithMetadata attaches free-form metadata to the handoff.
func WithMetadata(md map[string]any) HandoffOption {
	return func(h *Handoff) { h.metadata = cloneMap(md) }
}

// NewHandoff builds a Handoff. The worker must name a known identity.
func NewHandoff(worker WorkerID, task string, input map[string]any, opts ...HandoffOption) (Handoff, error) {
	if !worker.Valid() {
		return Handoff{}, types.Errorf(types.ErrInvalidHandoff, "unknown worker identity %q", worker)
	}
	h := Handoff{
		worker:   worker,
		task:     task,
		context:  cloneMap(input),
		priority: DefaultPriority,
	}
	if h.context == nil {
		h.context = map[string]any{}
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h, nil
}

// MustHandoff is NewHandoff for statically known identities; it panics on error.
func MustHandoff(worker WorkerID, task string, input map[string]any, opts ...HandoffOption) Handoff {
	h, err := NewHandoff(worker, task, input, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Handoff) Worker() WorkerID { return h.worker }
func (h Handoff) Task() string     { return h.task }
func (h Handoff) Priority() int    { return h.priority }

// ContextCopy returns a copy of the handoff context.
func (h Handoff) ContextCopy() map[string]any {
	c := cloneMap(h.context)
	if c == nil {
		c = map[string]any{}
	}
	return c
}

// Metadata returns a copy of the handoff metadata, or nil when none was set.
func (h Handoff) Metadata() map[string]any { return cloneMap(h.metadata) }

// Value looks up a single context key.
func (h Handoff) Value(key string) (any, bool) {
	v, ok := h.context[key]
	return v, ok
}

// WithContext returns a new Handoff whose context has key set to value.
func (h Handoff) WithContext(key string, value any) Handoff {
	next := h
	next.context = cloneMap(h.context)
	if next.context == nil {
		next.context = map[string]any{}
	}
	next.context[key] = value
	next.metadata = cloneMap(h.metadata)
	return next
}

func (h Handoff) clone() Handoff {
	c := h
	c.context = cloneMap(h.context)
	c.metadata = cloneMap(h.metadata)
	return c
}

func (h Handoff) String() string {
	return fmt.Sprintf("Handoff(worker=%s, task=%q, priority=%d)", h.worker, h.task, h.priority)
}

// =============================================================================
// Outcome
// =============================================================================

// Outcome is the recorded result of executing one handoff. Exactly one of
// Result and Error is meaningful, selected by Success. Treat as read-only.
type Outcome struct {
	Worker   WorkerID       `json:"worker"`
	Success  bool           `json:"success"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Succeeded builds a successful outcome.
func Succeeded(worker WorkerID, result any, metadata map[string]any) Outcome {
	return Outcome{
		Worker:   worker,
		Success:  true,
		Result:   result,
		Metadata: cloneMap(metadata),
	}
}

// Failed builds a failed outcome. An empty message becomes "unknown error".
func Failed(worker WorkerID, errText string, metadata map[string]any) Outcome {
	if errText == "" {
		errText = "unknown error"
	}
	return Outcome{
		Worker:   worker,
		Success:  false,
		Error:    errText,
		Metadata: cloneMap(metadata),
	}
}

// FailedFromError builds a failed outcome from err, tagging its error code.
func FailedFromError(worker WorkerID, err error) Outcome {
	code := types.GetErrorCode(err)
	if code == "" {
		code = types.ErrWorkerFailed
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Failed(worker, msg, map[string]any{MetaErrorCode: string(code)})
}

// Validate checks the success/error exclusivity invariant.
func (o Outcome) Validate() error {
	if o.Success && o.Error != "" {
		return types.Errorf(types.ErrWorkerFailed, "successful outcome for %s carries error %q", o.Worker, o.Error)
	}
	if !o.Success {
		if o.Error == "" {
			return types.Errorf(types.ErrWorkerFailed, "failed outcome for %s has no error text", o.Worker)
		}
		if o.Result != nil {
			return types.Errorf(types.ErrWorkerFailed, "failed outcome for %s carries a result", o.Worker)
		}
	}
	return nil
}

// TimedOut reports whether the outcome was synthesised for a plan timeout.
func (o Outcome) TimedOut() bool { return metaFlag(o.Metadata, MetaTimeout) }

// Cancelled reports whether the outcome was synthesised for a cancelled plan.
func (o Outcome) Cancelled() bool { return metaFlag(o.Metadata, MetaCancelled) }

// Interrupted reports whether the outcome stands in for a call that never completed.
func (o Outcome) Interrupted() bool { return o.TimedOut() || o.Cancelled() }

// ErrorCode returns the engine error code attached to a failed outcome.
func (o Outcome) ErrorCode() types.ErrorCode {
	if v, ok := o.Metadata[MetaErrorCode].(string); ok {
		return types.ErrorCode(v)
	}
	return ""
}

// normalize enforces the outcome invariant on values returned by workers.
func (o Outcome) normalize(worker WorkerID) Outcome {
	o.Worker = worker
	o.Metadata = cloneMap(o.Metadata)
	if o.Success {
		o.Error = ""
		return o
	}
	o.Result = nil
	if o.Error == "" {
		o.Error = "unknown error"
	}
	if o.ErrorCode() == "" {
		if o.Metadata == nil {
			o.Metadata = map[string]any{}
		}
		o.Metadata[MetaErrorCode] = string(types.ErrWorkerFailed)
	}
	return o
}

func (o Outcome) clone() Outcome {
	c := o
	c.Result = cloneValue(o.Result)
	c.Metadata = cloneMap(o.Metadata)
	return c
}

func metaFlag(md map[string]any, key string) bool {
	v, ok := md[key].(bool)
	return ok && v
}

// =============================================================================
// History entry
// =============================================================================

// HistoryEntry is one append-only record of an executed handoff.
type HistoryEntry struct {
	Seq       int64     `json:"seq"`
	PlanID    string    `json:"plan_id,omitempty"`
	Handoff   Handoff   `json:"-"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

func (e HistoryEntry) clone() HistoryEntry {
	c := e
	c.Handoff = e.Handoff.clone()
	c.Outcome = e.Outcome.clone()
	return c
}

// =============================================================================
// helpers
// =============================================================================

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
