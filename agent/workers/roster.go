package workers

import (
	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/config"
	"github.com/BaSui01/researchhub/llm"
	"github.com/BaSui01/researchhub/types"
)

// NewRoster builds every enabled worker in canonical order.
func NewRoster(reasoner llm.Reasoner, cfg config.WorkersConfig, logger *zap.Logger) ([]handoff.Worker, error) {
	if reasoner == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "reasoner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	roster := make([]handoff.Worker, 0, len(handoff.AllWorkers()))
	for _, id := range handoff.AllWorkers() {
		wc, _ := cfg.Worker(string(id))
		if !wc.Enabled {
			logger.Info("worker disabled", zap.String("worker", string(id)))
			continue
		}
		settings := Settings{Model: wc.Model, MaxTokens: wc.MaxTokens}
		roster = append(roster, New(id, reasoner, settings, logger))
	}
	if len(roster) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "all workers are disabled")
	}
	return roster, nil
}

// New creates the worker for id, or nil for an unknown id.
func New(id handoff.WorkerID, reasoner llm.Reasoner, settings Settings, logger *zap.Logger) handoff.Worker {
	switch id {
	case handoff.WorkerWebResearcher:
		return NewWebResearcher(reasoner, settings, logger)
	case handoff.WorkerDocumentAnalyzer:
		return NewDocumentAnalyzer(reasoner, settings, logger)
	case handoff.WorkerSummaryGenerator:
		return NewSummaryGenerator(reasoner, settings, logger)
	case handoff.WorkerQA:
		return NewQAAgent(reasoner, settings, logger)
	case handoff.WorkerCitationManager:
		return NewCitationManager(reasoner, settings, logger)
	default:
		return nil
	}
}
