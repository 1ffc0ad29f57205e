package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/llm"
)

// Step is one entry of an analysed workflow.
type Step struct {
	Agent   string         `json:"agent"`
	Task    string         `json:"task"`
	Context map[string]any `json:"context,omitempty"`
}

// Analysis is the reasoner's breakdown of a request.
type Analysis struct {
	TaskType        string   `json:"task_type"`
	RequiredAgents  []string `json:"required_agents"`
	Workflow        []Step   `json:"workflow"`
	ExpectedOutcome string   `json:"expected_outcome"`
	Strategy        string   `json:"strategy,omitempty"`
	// Fallback is set when the single-step QA analysis was substituted.
	Fallback bool `json:"-"`
}

const analysisTemplate = `Analyze this user request and determine:
1. What type of task is this? (research, Q&A, document analysis, summary generation, citation)
2. Which sub-agents are needed? Available agents: %s
3. What is the optimal workflow/handoff sequence?
4. What context is needed for each agent?

User request: %s

Respond in JSON format:
{
    "task_type": "...",
    "required_agents": ["agent1", "agent2"],
    "workflow": [
        {"agent": "agent1", "task": "...", "context": {}},
        {"agent": "agent2", "task": "...", "context": {}}
    ],
    "expected_outcome": "...",
    "strategy": "sequential|parallel|conditional|chain"
}`

// FallbackAnalysis answers request with a single QA step.
func FallbackAnalysis(request string) Analysis {
	return Analysis{
		TaskType:        "general",
		RequiredAgents:  []string{string(handoff.WorkerQA)},
		Workflow:        []Step{{Agent: string(handoff.WorkerQA), Task: request, Context: map[string]any{}}},
		ExpectedOutcome: "Answer user question",
		Fallback:        true,
	}
}

// Analyze asks the reasoner for a workflow. It never fails: any reasoning or
// parsing problem yields FallbackAnalysis.
func (o *Orchestrator) Analyze(ctx context.Context, request string) Analysis {
	if o.reasoner == nil {
		return FallbackAnalysis(request)
	}

	names := make([]string, 0, len(o.coord.Workers()))
	for _, id := range o.coord.Workers() {
		names = append(names, string(id))
	}
	resp, err := o.reasoner.Reason(ctx, llm.Request{
		Model:     o.model,
		System:    orchestratorSystem,
		Prompt:    fmt.Sprintf(analysisTemplate, strings.Join(names, ", "), request),
		MaxTokens: o.cfg.AnalysisMaxTokens,
	})
	if err != nil {
		o.logger.Warn("request analysis failed, using fallback", zap.Error(err))
		return FallbackAnalysis(request)
	}

	a, err := parseAnalysis(resp.Text)
	if err != nil {
		o.logger.Warn("unparsable analysis, using fallback", zap.Error(err))
		return FallbackAnalysis(request)
	}
	a = o.sanitize(a, request)
	if len(a.Workflow) == 0 {
		o.logger.Warn("analysis produced no usable steps, using fallback")
		return FallbackAnalysis(request)
	}
	return a
}

func parseAnalysis(text string) (Analysis, error) {
	raw := llm.ExtractJSON(text)
	if raw == "" {
		return Analysis{}, fmt.Errorf("no JSON object in analysis response")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	return a, nil
}

// sanitize drops steps naming unknown or unregistered workers and fills blank
// tasks with the original request.
func (o *Orchestrator) sanitize(a Analysis, request string) Analysis {
	steps := make([]Step, 0, len(a.Workflow))
	for i, s := range a.Workflow {
		id, err := handoff.ParseWorkerID(strings.TrimSpace(s.Agent))
		if err != nil || !o.coord.HasWorker(id) {
			o.logger.Warn("dropping workflow step with unknown agent",
				zap.Int("step", i),
				zap.String("agent", s.Agent),
			)
			continue
		}
		s.Agent = string(id)
		if strings.TrimSpace(s.Task) == "" {
			s.Task = request
		}
		if s.Context == nil {
			s.Context = map[string]any{}
		}
		steps = append(steps, s)
	}
	a.Workflow = steps

	if a.Strategy != "" {
		if _, err := handoff.ParseStrategy(a.Strategy); err != nil {
			o.logger.Warn("ignoring unrecognized strategy", zap.String("strategy", a.Strategy))
			a.Strategy = ""
		}
	}
	return a
}

// PlanFor turns an analysis into an executable plan. Without an explicit
// strategy, multi-step workflows run as a chain so each step sees the
// previous result; conditional plans stop at the first failure.
func (o *Orchestrator) PlanFor(a Analysis, opts ...handoff.PlanOption) (*handoff.Plan, error) {
	strategy := handoff.StrategySequential
	switch {
	case a.Strategy != "":
		s, err := handoff.ParseStrategy(a.Strategy)
		if err != nil {
			return nil, err
		}
		strategy = s
	case len(a.Workflow) > 1:
		strategy = handoff.StrategyChain
	}

	handoffs := make([]handoff.Handoff, 0, len(a.Workflow))
	for i, s := range a.Workflow {
		id, err := handoff.ParseWorkerID(s.Agent)
		if err != nil {
			return nil, err
		}
		h, err := handoff.NewHandoff(id, s.Task, s.Context, handoff.WithPriority(i+1))
		if err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}

	planOpts := o.planOptions()
	if strategy == handoff.StrategyConditional {
		planOpts = append(planOpts, handoff.WithCondition(handoff.SucceededOnly))
	}
	return handoff.NewPlan(strategy, handoffs, append(planOpts, opts...)...)
}
