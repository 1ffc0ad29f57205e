package handoff

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ConditionFunc decides whether a conditional run continues after an outcome.
type ConditionFunc func(Outcome) bool

// SucceededOnly continues while every step succeeds.
func SucceededOnly(o Outcome) bool { return o.Success }

// Qualitative confidence labels.
var confidenceLevels = map[string]float64{
	"high":   0.9,
	"medium": 0.6,
	"low":    0.3,
}

// MinConfidence continues while the outcome succeeded and reports a
// confidence of at least threshold. Outcomes without a confidence stop the run.
func MinConfidence(threshold float64) ConditionFunc {
	return func(o Outcome) bool {
		if !o.Success {
			return false
		}
		c, ok := Confidence(o)
		return ok && c >= threshold
	}
}

// All combines conditions; every one must hold.
func All(conds ...ConditionFunc) ConditionFunc {
	return func(o Outcome) bool {
		for _, cond := range conds {
			if cond != nil && !cond(o) {
				return false
			}
		}
		return true
	}
}

// Confidence reads "confidence" from a map result, falling back to metadata.
func Confidence(o Outcome) (float64, bool) {
	if m, ok := o.Result.(map[string]any); ok {
		if c, ok := parseConfidence(m["confidence"]); ok {
			return c, true
		}
	}
	return parseConfidence(o.Metadata["confidence"])
}

func parseConfidence(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if f, ok := confidenceLevels[s]; ok {
			return f, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
