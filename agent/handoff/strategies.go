package handoff

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/researchhub/types"
)

// ExecuteSequential runs handoffs one at a time in list order. Failures do
// not halt the batch and no context is threaded between steps.
func (c *Coordinator) ExecuteSequential(ctx context.Context, handoffs []Handoff) []Outcome {
	return c.runSequential(ctx, "", handoffs)
}

func (c *Coordinator) runSequential(ctx context.Context, planID string, handoffs []Handoff) []Outcome {
	outcomes := make([]Outcome, 0, len(handoffs))
	for i, h := range handoffs {
		if ctx.Err() != nil {
			for _, rest := range handoffs[i:] {
				outcomes = append(outcomes, interruptedOutcome(ctx, rest.Worker()))
			}
			break
		}
		outcomes = append(outcomes, c.dispatch(ctx, planID, h))
	}
	return outcomes
}

// ExecuteParallel runs all handoffs concurrently and waits for every one.
// outcomes[i] belongs to handoffs[i].
func (c *Coordinator) ExecuteParallel(ctx context.Context, handoffs []Handoff) []Outcome {
	return c.runParallel(ctx, "", handoffs)
}

// ExecuteParallelMerged is ExecuteParallel plus the merged view of the results.
func (c *Coordinator) ExecuteParallelMerged(ctx context.Context, handoffs []Handoff) ([]Outcome, *MergedResult) {
	outcomes := c.runParallel(ctx, "", handoffs)
	return outcomes, MergeOutcomes(outcomes)
}

func (c *Coordinator) runParallel(ctx context.Context, planID string, handoffs []Handoff) []Outcome {
	outcomes := make([]Outcome, len(handoffs))
	g, gctx := errgroup.WithContext(ctx)
	if c.maxParallel > 0 {
		g.SetLimit(c.maxParallel)
	}
	for i, h := range handoffs {
		g.Go(func() error {
			// queued behind the limit past the deadline: never dispatched
			if gctx.Err() != nil {
				outcomes[i] = interruptedOutcome(gctx, h.Worker())
				return nil
			}
			outcomes[i] = c.dispatch(gctx, planID, h)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ExecuteConditional runs handoffs in order and stops as soon as cond
// rejects the latest outcome. cond is required.
func (c *Coordinator) ExecuteConditional(ctx context.Context, handoffs []Handoff, cond ConditionFunc) ([]Outcome, error) {
	if cond == nil {
		return nil, types.NewError(types.ErrPlanValidation, "conditional execution requires a condition")
	}
	return c.runConditional(ctx, "", handoffs, cond), nil
}

func (c *Coordinator) runConditional(ctx context.Context, planID string, handoffs []Handoff, cond ConditionFunc) []Outcome {
	outcomes := make([]Outcome, 0, len(handoffs))
	for i, h := range handoffs {
		if i > 0 && !cond(outcomes[i-1]) {
			c.logger.Debug("condition not met, stopping",
				zap.String("plan_id", planID),
				zap.Int("completed", i),
				zap.Int("total", len(handoffs)),
			)
			break
		}
		if ctx.Err() != nil {
			outcomes = append(outcomes, interruptedOutcome(ctx, h.Worker()))
			break
		}
		out := c.dispatch(ctx, planID, h)
		outcomes = append(outcomes, out)
		if out.Interrupted() {
			break
		}
	}
	return outcomes
}

// ExecuteChain runs handoffs in order, passing each successful result to the
// next step under PreviousResultKey. The first failure ends the chain and is
// returned; otherwise the last step's outcome is returned.
func (c *Coordinator) ExecuteChain(ctx context.Context, handoffs []Handoff) (Outcome, error) {
	if len(handoffs) == 0 {
		return Outcome{}, types.NewError(types.ErrPlanValidation, "chain requires at least one handoff")
	}
	return c.runChain(ctx, "", handoffs), nil
}

func (c *Coordinator) runChain(ctx context.Context, planID string, handoffs []Handoff) Outcome {
	var current Outcome
	for i, h := range handoffs {
		if i > 0 {
			h = h.WithContext(PreviousResultKey, current.Result)
		}
		if ctx.Err() != nil {
			return interruptedOutcome(ctx, h.Worker())
		}
		current = c.dispatch(ctx, planID, h)
		if !current.Success {
			if !current.Interrupted() {
				c.logger.Info("chain stopped on failure",
					zap.String("plan_id", planID),
					zap.Int("step", i),
					zap.String("worker", h.Worker().String()),
				)
			}
			return current
		}
	}
	return current
}
