package handoff

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/researchhub/types"
)

// PlanFile is the YAML form of a plan.
//
//	strategy: chain
//	timeout: 90s
//	handoffs:
//	  - worker: web_researcher
//	    task: "quantum error correction"
//	  - worker: summary_generator
//	    task: "summarize findings"
//	    context: {summary_type: executive}
type PlanFile struct {
	ID           string            `yaml:"id"`
	Strategy     string            `yaml:"strategy"`
	MergeResults *bool             `yaml:"merge_results"`
	Timeout      string            `yaml:"timeout"`
	Condition    *ConditionSpec    `yaml:"condition"`
	Handoffs     []HandoffFileItem `yaml:"handoffs"`
}

// ConditionSpec names one of the built-in predicates.
type ConditionSpec struct {
	Type      string  `yaml:"type"` // succeeded | min_confidence
	Threshold float64 `yaml:"threshold"`
}

// HandoffFileItem is one handoff in a PlanFile.
type HandoffFileItem struct {
	Worker   string         `yaml:"worker"`
	Task     string         `yaml:"task"`
	Context  map[string]any `yaml:"context"`
	Priority *int           `yaml:"priority"`
	Metadata map[string]any `yaml:"metadata"`
}

// LoadPlanFile reads and parses a YAML plan from path.
func LoadPlanFile(path string, opts ...PlanOption) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlanYAML(data, opts...)
}

// ParsePlanYAML builds a Plan from YAML. opts are applied after the file's
// own settings, so a caller-supplied condition overrides the file's.
func ParsePlanYAML(data []byte, opts ...PlanOption) (*Plan, error) {
	var pf PlanFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, types.NewError(types.ErrPlanValidation, "malformed plan file").WithCause(err)
	}

	strategy, err := ParseStrategy(pf.Strategy)
	if err != nil {
		return nil, err
	}

	handoffs := make([]Handoff, 0, len(pf.Handoffs))
	for i, item := range pf.Handoffs {
		worker, err := ParseWorkerID(item.Worker)
		if err != nil {
			return nil, types.Errorf(types.ErrPlanValidation, "handoff %d: unknown worker %q", i, item.Worker).WithCause(err)
		}
		hopts := []HandoffOption{}
		if item.Priority != nil {
			hopts = append(hopts, WithPriority(*item.Priority))
		}
		if item.Metadata != nil {
			hopts = append(hopts, WithMetadata(item.Metadata))
		}
		h, err := NewHandoff(worker, item.Task, item.Context, hopts...)
		if err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}

	popts := []PlanOption{WithPlanID(pf.ID)}
	if pf.MergeResults != nil {
		popts = append(popts, WithMergeResults(*pf.MergeResults))
	}
	if pf.Timeout != "" {
		d, err := time.ParseDuration(pf.Timeout)
		if err != nil {
			return nil, types.Errorf(types.ErrPlanValidation, "invalid plan timeout %q", pf.Timeout).WithCause(err)
		}
		popts = append(popts, WithTimeout(d))
	}
	if pf.Condition != nil {
		cond, err := pf.Condition.build()
		if err != nil {
			return nil, err
		}
		popts = append(popts, WithCondition(cond))
	}
	popts = append(popts, opts...)

	return NewPlan(strategy, handoffs, popts...)
}

func (cs *ConditionSpec) build() (ConditionFunc, error) {
	switch cs.Type {
	case "succeeded":
		return SucceededOnly, nil
	case "min_confidence":
		return MinConfidence(cs.Threshold), nil
	default:
		return nil, types.Errorf(types.ErrPlanValidation, "unknown condition type %q", cs.Type)
	}
}
