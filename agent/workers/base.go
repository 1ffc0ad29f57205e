package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/llm"
	"github.com/BaSui01/researchhub/types"
)

// Content limits applied before text is embedded in a prompt.
const (
	maxResearchContext = 5000
	maxAnalyzerContent = 10000
	maxSummaryContent  = 15000
	maxPreviousResult  = 8000
)

// Settings are the per-worker reasoning parameters.
type Settings struct {
	Model     string
	MaxTokens int
}

// base carries what every worker shares: identity, system prompt and reasoner.
type base struct {
	id       handoff.WorkerID
	system   string
	settings Settings
	reasoner llm.Reasoner
	logger   *zap.Logger
	now      func() time.Time
}

func newBase(id handoff.WorkerID, system string, reasoner llm.Reasoner, settings Settings, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		id:       id,
		system:   system,
		settings: settings,
		reasoner: reasoner,
		logger:   logger.With(zap.String("component", "worker"), zap.String("worker", string(id))),
		now:      time.Now,
	}
}

// ID implements handoff.Worker.
func (b *base) ID() handoff.WorkerID { return b.id }

// run sends prompt and shapes the reply into an outcome. extra is merged into
// the result map alongside agent, result and status.
func (b *base) run(ctx context.Context, prompt string, extra map[string]any) handoff.Outcome {
	if b.reasoner == nil {
		return handoff.FailedFromError(b.id, types.NewError(types.ErrInvalidConfig, "no reasoner configured"))
	}
	start := b.now()
	resp, err := b.reasoner.Reason(ctx, llm.Request{
		Model:     b.settings.Model,
		System:    b.system,
		Prompt:    prompt,
		MaxTokens: b.settings.MaxTokens,
	})
	if err != nil {
		b.logger.Warn("reasoning failed", zap.Error(err))
		return handoff.FailedFromError(b.id, err)
	}

	result := map[string]any{
		"agent":  string(b.id),
		"result": resp.Text,
		"status": "completed",
	}
	for k, v := range extra {
		result[k] = v
	}
	if c, ok := structuredConfidence(resp.Text); ok {
		result["confidence"] = c
	}

	b.logger.Debug("worker completed",
		zap.Duration("elapsed", b.now().Sub(start)),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return handoff.Succeeded(b.id, result, map[string]any{
		"model":         resp.Model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	})
}

// structuredConfidence pulls "confidence" out of a JSON reply, if present.
func structuredConfidence(text string) (any, bool) {
	raw := llm.ExtractJSON(text)
	if raw == "" {
		return nil, false
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}
	c, ok := parsed["confidence"]
	if !ok || c == nil {
		return nil, false
	}
	return c, true
}

// =============================================================================
// context helpers
// =============================================================================

func stringValue(input map[string]any, key, def string) string {
	if v, ok := input[key]; ok {
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case nil:
		default:
			return fmt.Sprint(s)
		}
	}
	return def
}

// contentOrPrevious returns input["content"], falling back to the upstream
// result a chain injected.
func contentOrPrevious(input map[string]any) string {
	if c := stringValue(input, "content", ""); c != "" {
		return c
	}
	if prev, ok := input[handoff.PreviousResultKey]; ok && prev != nil {
		return handoff.ResultText(prev)
	}
	return ""
}

// describeContext renders the context map deterministically, leaving out keys
// the worker already placed in the prompt.
func describeContext(input map[string]any, skip ...string) string {
	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		if !skipped[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "none"
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("; ")
		}
		v := input[k]
		if k == handoff.PreviousResultKey {
			v = truncate(handoff.ResultText(v), maxPreviousResult)
		}
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
