package orchestrator

import (
	"fmt"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/agent/workers"
)

// ResearchWorkflow builds the research chain
// web_researcher → document_analyzer → summary_generator. Each step reads
// the previous step's result from previous_result.
func (o *Orchestrator) ResearchWorkflow(query string, opts ...handoff.PlanOption) (*handoff.Plan, error) {
	steps := []handoff.Handoff{}
	for _, s := range []struct {
		worker handoff.WorkerID
		task   string
		input  map[string]any
	}{
		{handoff.WorkerWebResearcher, query, map[string]any{}},
		{handoff.WorkerDocumentAnalyzer, fmt.Sprintf("Analyze research findings for: %s", query),
			map[string]any{workers.KeyAnalysisType: "research"}},
		{handoff.WorkerSummaryGenerator, fmt.Sprintf("Summarize research on: %s", query),
			map[string]any{workers.KeySummaryType: "research_report", workers.KeyLength: "detailed"}},
	} {
		h, err := handoff.NewHandoff(s.worker, s.task, s.input, handoff.WithPriority(len(steps)+1))
		if err != nil {
			return nil, err
		}
		steps = append(steps, h)
	}
	return handoff.NewPlan(handoff.StrategyChain, steps, append(o.planOptions(), opts...)...)
}

// QAWorkflow builds a QA plan. When background is non-empty a
// document_analyzer step prepares it first and the two run as a chain, so
// the answer sees both the background and the analysis.
func (o *Orchestrator) QAWorkflow(question, background string, opts ...handoff.PlanOption) (*handoff.Plan, error) {
	var steps []handoff.Handoff
	qaInput := map[string]any{}
	if background != "" {
		prep, err := handoff.NewHandoff(handoff.WorkerDocumentAnalyzer,
			fmt.Sprintf("Extract relevant info for question: %s", question),
			map[string]any{workers.KeyContent: background, workers.KeyAnalysisType: "qa_prep"},
			handoff.WithPriority(1),
		)
		if err != nil {
			return nil, err
		}
		steps = append(steps, prep)
		qaInput[workers.KeyContext] = background
	}
	qa, err := handoff.NewHandoff(handoff.WorkerQA, question, qaInput, handoff.WithPriority(2))
	if err != nil {
		return nil, err
	}
	steps = append(steps, qa)
	strategy := handoff.StrategySequential
	if len(steps) > 1 {
		strategy = handoff.StrategyChain
	}
	return handoff.NewPlan(strategy, steps, append(o.planOptions(), opts...)...)
}
