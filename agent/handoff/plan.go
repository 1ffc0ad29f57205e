package handoff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/types"
)

// Plan is a declarative execution plan. Build one with NewPlan; a Plan is
// not modified after construction.
type Plan struct {
	id           string
	strategy     Strategy
	handoffs     []Handoff
	mergeResults bool
	timeout      time.Duration
	condition    ConditionFunc
}

// PlanOption configures optional Plan fields.
type PlanOption func(*Plan)

// WithMergeResults toggles the merged view for parallel plans. Default true.
func WithMergeResults(merge bool) PlanOption {
	return func(p *Plan) { p.mergeResults = merge }
}

// WithTimeout bounds the whole plan. Default DefaultPlanTimeout.
func WithTimeout(d time.Duration) PlanOption {
	return func(p *Plan) { p.timeout = d }
}

// WithCondition supplies the predicate for conditional plans.
func WithCondition(cond ConditionFunc) PlanOption {
	return func(p *Plan) { p.condition = cond }
}

// WithPlanID overrides the generated plan ID.
func WithPlanID(id string) PlanOption {
	return func(p *Plan) {
		if id != "" {
			p.id = id
		}
	}
}

// NewPlan builds and validates a plan.
func NewPlan(strategy Strategy, handoffs []Handoff, opts ...PlanOption) (*Plan, error) {
	p := &Plan{
		id:           uuid.NewString(),
		strategy:     strategy,
		mergeResults: true,
		timeout:      DefaultPlanTimeout,
	}
	p.handoffs = make([]Handoff, len(handoffs))
	for i, h := range handoffs {
		p.handoffs[i] = h.clone()
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the plan's structural invariants.
func (p *Plan) Validate() error {
	if p == nil {
		return types.NewError(types.ErrPlanValidation, "plan is nil")
	}
	if len(p.handoffs) == 0 {
		return types.NewError(types.ErrPlanValidation, "plan has no handoffs")
	}
	if !p.strategy.Valid() {
		return types.Errorf(types.ErrPlanValidation, "unrecognized strategy %q", p.strategy)
	}
	if p.timeout <= 0 {
		return types.Errorf(types.ErrPlanValidation, "plan timeout must be positive, got %s", p.timeout)
	}
	if p.strategy == StrategyConditional && p.condition == nil {
		return types.NewError(types.ErrPlanValidation, "conditional plan requires a condition")
	}
	for i, h := range p.handoffs {
		if !h.Worker().Valid() {
			return types.Errorf(types.ErrPlanValidation, "handoff %d targets unknown worker %q", i, h.Worker())
		}
	}
	return nil
}

func (p *Plan) ID() string               { return p.id }
func (p *Plan) Strategy() Strategy       { return p.strategy }
func (p *Plan) MergeResults() bool       { return p.mergeResults }
func (p *Plan) Timeout() time.Duration   { return p.timeout }
func (p *Plan) Condition() ConditionFunc { return p.condition }
func (p *Plan) Len() int                 { return len(p.handoffs) }

// Handoffs returns a copy of the plan's handoff list.
func (p *Plan) Handoffs() []Handoff {
	out := make([]Handoff, len(p.handoffs))
	copy(out, p.handoffs)
	return out
}

// PlanResult is what ExecutePlan returns. For chain plans Outcomes holds
// exactly one element. Merged is set only for parallel plans that merge.
type PlanResult struct {
	PlanID    string        `json:"plan_id"`
	Strategy  Strategy      `json:"strategy"`
	Outcomes  []Outcome     `json:"outcomes"`
	Merged    *MergedResult `json:"merged,omitempty"`
	TimedOut  bool          `json:"timed_out"`
	Cancelled bool          `json:"cancelled"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Final returns the last outcome, which for chain plans is the chain result.
func (r *PlanResult) Final() (Outcome, bool) {
	if r == nil || len(r.Outcomes) == 0 {
		return Outcome{}, false
	}
	return r.Outcomes[len(r.Outcomes)-1], true
}

// AllSucceeded reports whether every returned outcome succeeded.
func (r *PlanResult) AllSucceeded() bool {
	if r == nil || len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// ExecutePlan validates plan and dispatches it by strategy under the plan
// timeout. Only validation failures are returned as errors; worker
// failures and timeouts are reported through the outcomes.
func (c *Coordinator) ExecutePlan(ctx context.Context, plan *Plan) (*PlanResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	timeoutCause := types.Errorf(types.ErrPlanTimeout, "plan timed out after %s", plan.timeout)
	planCtx, cancel := context.WithTimeoutCause(ctx, plan.timeout, timeoutCause)
	defer cancel()

	planCtx, span := c.tracer.Start(planCtx, "handoff.plan",
		trace.WithAttributes(
			attribute.String("plan.id", plan.id),
			attribute.String("plan.strategy", plan.strategy.String()),
			attribute.Int("plan.handoffs", len(plan.handoffs)),
			attribute.Int64("plan.timeout_ms", plan.timeout.Milliseconds()),
		))
	defer span.End()

	c.logger.Info("executing plan",
		zap.String("plan_id", plan.id),
		zap.String("strategy", plan.strategy.String()),
		zap.Int("handoffs", len(plan.handoffs)),
		zap.Duration("timeout", plan.timeout),
	)

	res := &PlanResult{PlanID: plan.id, Strategy: plan.strategy}
	switch plan.strategy {
	case StrategySequential:
		res.Outcomes = c.runSequential(planCtx, plan.id, plan.handoffs)
	case StrategyParallel:
		res.Outcomes = c.runParallel(planCtx, plan.id, plan.handoffs)
		if plan.mergeResults {
			res.Merged = MergeOutcomes(res.Outcomes)
		}
	case StrategyConditional:
		res.Outcomes = c.runConditional(planCtx, plan.id, plan.handoffs, plan.condition)
	case StrategyChain:
		res.Outcomes = []Outcome{c.runChain(planCtx, plan.id, plan.handoffs)}
	}
	res.Elapsed = time.Since(start)

	for _, o := range res.Outcomes {
		res.TimedOut = res.TimedOut || o.TimedOut()
		res.Cancelled = res.Cancelled || o.Cancelled()
	}

	status := planStatus(res)
	c.metrics.RecordPlan(plan.strategy.String(), status, len(plan.handoffs), res.Elapsed)
	span.SetAttributes(attribute.String("plan.status", status))

	switch {
	case res.TimedOut, res.Cancelled:
		reason := "timeout"
		if res.Cancelled {
			reason = "cancelled"
		}
		c.metrics.RecordPlanTimeout(plan.strategy.String(), reason)
		span.SetStatus(codes.Error, "plan "+reason)
		c.logger.Warn("plan interrupted",
			zap.String("plan_id", plan.id),
			zap.String("reason", reason),
			zap.Duration("timeout", plan.timeout),
			zap.Duration("elapsed", res.Elapsed),
			zap.Int("outcomes", len(res.Outcomes)),
		)
	default:
		c.logger.Info("plan completed",
			zap.String("plan_id", plan.id),
			zap.String("status", status),
			zap.Duration("elapsed", res.Elapsed),
			zap.Int("outcomes", len(res.Outcomes)),
		)
	}
	return res, nil
}

func planStatus(res *PlanResult) string {
	switch {
	case res.TimedOut:
		return "timeout"
	case res.Cancelled:
		return "cancelled"
	}
	failed := 0
	for _, o := range res.Outcomes {
		if !o.Success {
			failed++
		}
	}
	switch {
	case failed == 0:
		return "completed"
	case failed == len(res.Outcomes):
		return "failed"
	default:
		return "partial"
	}
}
