package workers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/llm"
)

// Context keys understood by the workers.
const (
	KeyContent             = "content"
	KeyAnalysisType        = "analysis_type"
	KeySummaryType         = "summary_type"
	KeyLength              = "length"
	KeyContext             = "context"
	KeyConversationHistory = "conversation_history"
	KeySourceInfo          = "source_info"
	KeyCitationStyle       = "citation_style"
)

// conversationWindow is how many prior turns the QA prompt includes.
const conversationWindow = 5

// =============================================================================
// WebResearcher
// =============================================================================

// WebResearcher researches the task text as a query.
type WebResearcher struct{ base }

// NewWebResearcher creates the web research worker.
func NewWebResearcher(reasoner llm.Reasoner, settings Settings, logger *zap.Logger) *WebResearcher {
	return &WebResearcher{newBase(handoff.WorkerWebResearcher, webResearcherSystem, reasoner, settings, logger)}
}

// Execute implements handoff.Worker.
func (w *WebResearcher) Execute(ctx context.Context, task string, input map[string]any) handoff.Outcome {
	prompt := fmt.Sprintf(webResearchTemplate, task, truncate(describeContext(input), maxResearchContext))
	return w.run(ctx, prompt, map[string]any{"query": task})
}

// =============================================================================
// DocumentAnalyzer
// =============================================================================

// DocumentAnalyzer analyzes context["content"], or the upstream result in a chain.
type DocumentAnalyzer struct{ base }

// NewDocumentAnalyzer creates the document analysis worker.
func NewDocumentAnalyzer(reasoner llm.Reasoner, settings Settings, logger *zap.Logger) *DocumentAnalyzer {
	return &DocumentAnalyzer{newBase(handoff.WorkerDocumentAnalyzer, documentAnalyzerSystem, reasoner, settings, logger)}
}

// Execute implements handoff.Worker.
func (w *DocumentAnalyzer) Execute(ctx context.Context, task string, input map[string]any) handoff.Outcome {
	analysisType := stringValue(input, KeyAnalysisType, "general")
	content := truncate(contentOrPrevious(input), maxAnalyzerContent)
	prompt := fmt.Sprintf(analyzeTemplate,
		analysisType, task,
		describeContext(input, KeyContent, KeyAnalysisType),
		content,
	)
	return w.run(ctx, prompt, map[string]any{KeyAnalysisType: analysisType})
}

// =============================================================================
// SummaryGenerator
// =============================================================================

// SummaryGenerator summarizes context["content"], or the upstream result in a chain.
type SummaryGenerator struct{ base }

// NewSummaryGenerator creates the summary worker.
func NewSummaryGenerator(reasoner llm.Reasoner, settings Settings, logger *zap.Logger) *SummaryGenerator {
	return &SummaryGenerator{newBase(handoff.WorkerSummaryGenerator, summaryGeneratorSystem, reasoner, settings, logger)}
}

// Execute implements handoff.Worker.
func (w *SummaryGenerator) Execute(ctx context.Context, task string, input map[string]any) handoff.Outcome {
	summaryType := stringValue(input, KeySummaryType, "standard")
	length := stringValue(input, KeyLength, "medium")
	guide, ok := summaryLengths[length]
	if !ok {
		guide = summaryLengths["medium"]
	}
	content := truncate(contentOrPrevious(input), maxSummaryContent)
	prompt := fmt.Sprintf(summaryTemplate,
		summaryType, length, guide, task,
		describeContext(input, KeyContent, KeySummaryType, KeyLength),
		content, summaryType,
	)
	return w.run(ctx, prompt, map[string]any{KeySummaryType: summaryType, KeyLength: length})
}

// =============================================================================
// QAAgent
// =============================================================================

// QAAgent answers the task text as a question.
type QAAgent struct{ base }

// NewQAAgent creates the question answering worker.
func NewQAAgent(reasoner llm.Reasoner, settings Settings, logger *zap.Logger) *QAAgent {
	return &QAAgent{newBase(handoff.WorkerQA, qaAgentSystem, reasoner, settings, logger)}
}

// Execute implements handoff.Worker.
func (w *QAAgent) Execute(ctx context.Context, task string, input map[string]any) handoff.Outcome {
	var ctxBlock string
	background := stringValue(input, KeyContext, "")
	if prev, ok := input[handoff.PreviousResultKey]; ok && prev != nil {
		prevText := truncate(handoff.ResultText(prev), maxPreviousResult)
		if background == "" {
			background = prevText
		} else {
			background += "\n\n" + prevText
		}
	}
	if background != "" {
		ctxBlock = "\nContext: " + background + "\n"
	}
	prompt := fmt.Sprintf(qaTemplate, task, ctxBlock, formatConversation(input[KeyConversationHistory]))
	return w.run(ctx, prompt, map[string]any{"question": task})
}

// formatConversation renders the last few turns of a conversation history.
// Turns may be map[string]any or map[string]string with role/content keys.
func formatConversation(v any) string {
	var turns []string
	switch hist := v.(type) {
	case []map[string]any:
		for _, m := range hist {
			turns = append(turns, fmt.Sprintf("%v: %v", m["role"], m["content"]))
		}
	case []map[string]string:
		for _, m := range hist {
			turns = append(turns, m["role"]+": "+m["content"])
		}
	case []any:
		for _, item := range hist {
			if m, ok := item.(map[string]any); ok {
				turns = append(turns, fmt.Sprintf("%v: %v", m["role"], m["content"]))
			}
		}
	}
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > conversationWindow {
		turns = turns[len(turns)-conversationWindow:]
	}
	return "\nPrevious conversation:\n" + strings.Join(turns, "\n") + "\n"
}

// =============================================================================
// CitationManager
// =============================================================================

// CitationManager formats context["source_info"] in the requested style.
type CitationManager struct{ base }

// NewCitationManager creates the citation worker.
func NewCitationManager(reasoner llm.Reasoner, settings Settings, logger *zap.Logger) *CitationManager {
	return &CitationManager{newBase(handoff.WorkerCitationManager, citationManagerSystem, reasoner, settings, logger)}
}

// Execute implements handoff.Worker.
func (w *CitationManager) Execute(ctx context.Context, task string, input map[string]any) handoff.Outcome {
	style := stringValue(input, KeyCitationStyle, "APA")
	source := formatSourceInfo(input[KeySourceInfo])
	if source == "" {
		if prev, ok := input[handoff.PreviousResultKey]; ok && prev != nil {
			source = truncate(handoff.ResultText(prev), maxPreviousResult)
		}
	}
	prompt := fmt.Sprintf(citationTemplate, style, task, source, style)
	return w.run(ctx, prompt, map[string]any{KeyCitationStyle: style})
}

func formatSourceInfo(v any) string {
	var info map[string]any
	switch m := v.(type) {
	case map[string]any:
		info = m
	case map[string]string:
		info = make(map[string]any, len(m))
		for k, s := range m {
			info[k] = s
		}
	case string:
		return m
	default:
		return ""
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, info[k]))
	}
	return strings.Join(lines, "\n")
}
