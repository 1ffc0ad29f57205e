package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/config"
	"github.com/BaSui01/researchhub/llm"
	"github.com/BaSui01/researchhub/llm/retry"
	"github.com/BaSui01/researchhub/types"
)

const orchestratorSystem = `You are the coordinator of a research assistant made of specialised agents ` +
	`(web research, document analysis, summary generation, question answering, citation management). ` +
	`Break requests into the smallest workflow that fully serves them and always reply in the requested format.`

const synthesisTemplate = `Synthesize these agent results into a coherent response for the user:

User request: %s

Agent Results:
%s

Create a natural, informative response that:
1. Addresses the user's original request
2. Incorporates insights from all successful agent executions
3. Provides actionable information
4. Mentions any errors or limitations if they exist`

// Message is one turn of the orchestrator conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is the result of Process.
type Response struct {
	Request  string              `json:"request"`
	Analysis Analysis            `json:"analysis"`
	Result   *handoff.PlanResult `json:"result"`
	Retries  int                 `json:"retries"`
	Answer   string              `json:"answer"`
	// Synthesized is false when Answer is the plain concatenation fallback.
	Synthesized bool          `json:"synthesized"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Orchestrator turns requests into plans and plan results into answers.
type Orchestrator struct {
	coord    *handoff.Coordinator
	reasoner llm.Reasoner
	cfg      config.OrchestratorConfig
	model    string

	planTimeout  time.Duration
	mergeResults bool

	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	conversation []Message
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the orchestrator settings.
func WithConfig(cfg config.OrchestratorConfig) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithPlanDefaults sets the timeout and merge flag applied to every plan built here.
func WithPlanDefaults(timeout time.Duration, merge bool) Option {
	return func(o *Orchestrator) {
		o.planTimeout = timeout
		o.mergeResults = merge
	}
}

// WithModel overrides the model used for analysis and synthesis.
func WithModel(model string) Option {
	return func(o *Orchestrator) { o.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator over coord. reasoner may be nil, in which case
// analysis always falls back and answers are concatenated results.
func New(coord *handoff.Coordinator, reasoner llm.Reasoner, opts ...Option) (*Orchestrator, error) {
	if coord == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "coordinator is required")
	}
	o := &Orchestrator{
		coord:        coord,
		reasoner:     reasoner,
		cfg:          config.DefaultOrchestratorConfig(),
		planTimeout:  handoff.DefaultPlanTimeout,
		mergeResults: true,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o, nil
}

func (o *Orchestrator) planOptions() []handoff.PlanOption {
	return []handoff.PlanOption{
		handoff.WithTimeout(o.planTimeout),
		handoff.WithMergeResults(o.mergeResults),
	}
}

// Process analyses request, executes the resulting plan, retries failed
// steps and synthesises an answer.
func (o *Orchestrator) Process(ctx context.Context, request string) (*Response, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "request is empty")
	}
	start := o.now()
	o.appendTurn("user", request)

	analysis := o.Analyze(ctx, request)
	plan, err := o.PlanFor(analysis)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	resp, err := o.Run(ctx, request, plan)
	if err != nil {
		return nil, err
	}
	resp.Analysis = analysis
	resp.Elapsed = o.now().Sub(start)

	o.appendTurn("assistant", resp.Answer)
	return resp, nil
}

// Run executes plan on behalf of request, retries failed steps and
// synthesises an answer. It does not touch the conversation.
func (o *Orchestrator) Run(ctx context.Context, request string, plan *handoff.Plan) (*Response, error) {
	start := o.now()
	res, err := o.coord.ExecutePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	retries := o.retryFailed(ctx, plan, res)

	answer, synthesized := o.synthesize(ctx, request, res)
	return &Response{
		Request:     request,
		Result:      res,
		Retries:     retries,
		Answer:      answer,
		Synthesized: synthesized,
		Elapsed:     o.now().Sub(start),
	}, nil
}

// =============================================================================
// retry
// =============================================================================

func (o *Orchestrator) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:   o.cfg.MaxRetries,
		InitialDelay: o.cfg.InitialBackoff,
		MaxDelay:     o.cfg.MaxBackoff,
		Multiplier:   2.0,
	}
}

// retryFailed re-dispatches failed steps in place with exponential backoff and
// returns the number of re-dispatches. Interrupted outcomes and chain plans
// are left alone: a chain has a single outcome standing for the whole pipeline.
func (o *Orchestrator) retryFailed(ctx context.Context, plan *handoff.Plan, res *handoff.PlanResult) int {
	// chain and conditional runs stop at the failing step, so a recovered
	// step would leave the rest of the plan unexecuted
	switch plan.Strategy() {
	case handoff.StrategySequential, handoff.StrategyParallel:
	default:
		return 0
	}
	if o.cfg.MaxRetries <= 0 {
		return 0
	}
	policy := o.retryPolicy()
	handoffs := plan.Handoffs()
	attempts := 0
	changed := false
	for i, out := range res.Outcomes {
		if i >= len(handoffs) || !retryableOutcome(out) {
			continue
		}
		h := handoffs[i]
		current := out
		for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
			delay := policy.Delay(attempt)
			o.logger.Info("retrying failed handoff",
				zap.String("plan_id", plan.ID()),
				zap.String("worker", h.Worker().String()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.String("error", current.Error),
			)
			if err := retry.Wait(ctx, delay); err != nil {
				break
			}
			next := o.coord.ExecuteHandoffInPlan(ctx, plan.ID(), h)
			attempts++
			if next.Interrupted() {
				break
			}
			current = next
			if !retryableOutcome(current) {
				break
			}
		}
		if current.Success {
			changed = true
		} else {
			o.logger.Warn("handoff still failing after retries",
				zap.String("plan_id", plan.ID()),
				zap.String("worker", h.Worker().String()),
				zap.String("error", current.Error),
			)
		}
		res.Outcomes[i] = current
	}
	if changed && res.Merged != nil {
		res.Merged = handoff.MergeOutcomes(res.Outcomes)
	}
	return attempts
}

var permanentCodes = map[types.ErrorCode]bool{
	types.ErrUnknownWorker:  true,
	types.ErrInvalidHandoff: true,
	types.ErrInvalidRequest: true,
	types.ErrAuthentication: true,
	types.ErrInvalidConfig:  true,
	types.ErrPlanTimeout:    true,
	types.ErrPlanCancelled:  true,
}

func retryableOutcome(out handoff.Outcome) bool {
	return !out.Success && !out.Interrupted() && !permanentCodes[out.ErrorCode()]
}

// =============================================================================
// synthesis
// =============================================================================

type resultSummary struct {
	Agent   string `json:"agent"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (o *Orchestrator) synthesize(ctx context.Context, request string, res *handoff.PlanResult) (string, bool) {
	fallback := fallbackAnswer(res)
	if o.reasoner == nil {
		return fallback, false
	}

	summaries := make([]resultSummary, 0, len(res.Outcomes))
	for _, out := range res.Outcomes {
		summaries = append(summaries, resultSummary{
			Agent:   string(out.Worker),
			Success: out.Success,
			Result:  handoff.ResultText(out.Result),
			Error:   out.Error,
		})
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fallback, false
	}

	resp, err := o.reasoner.Reason(ctx, llm.Request{
		Model:     o.model,
		System:    orchestratorSystem,
		Prompt:    fmt.Sprintf(synthesisTemplate, request, data),
		MaxTokens: o.cfg.SynthesisMaxTokens,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		o.logger.Warn("synthesis failed, returning concatenated results", zap.Error(err))
		return fallback, false
	}
	return resp.Text, true
}

// fallbackAnswer concatenates successful results, or lists the errors when
// nothing succeeded.
func fallbackAnswer(res *handoff.PlanResult) string {
	merged := res.Merged
	if merged == nil {
		merged = handoff.MergeOutcomes(res.Outcomes)
	}
	if merged.Succeeded > 0 {
		return merged.Text()
	}
	lines := make([]string, 0, len(merged.Errors)+1)
	lines = append(lines, "No agent produced a result.")
	for _, e := range merged.Errors {
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Worker, e.Error))
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// conversation
// =============================================================================

func (o *Orchestrator) appendTurn(role, content string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversation = append(o.conversation, Message{Role: role, Content: content, Timestamp: o.now()})
	if limit := o.cfg.ConversationLimit; limit > 0 && len(o.conversation) > limit {
		o.conversation = append([]Message(nil), o.conversation[len(o.conversation)-limit:]...)
	}
}

// Conversation returns a copy of the recorded turns, oldest first.
func (o *Orchestrator) Conversation() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.conversation...)
}

// ClearConversation drops all recorded turns.
func (o *Orchestrator) ClearConversation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversation = nil
}
