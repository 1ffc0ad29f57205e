package handoff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaggedResult is a successful result labelled with its producer.
type TaggedResult struct {
	Index  int      `json:"index"`
	Worker WorkerID `json:"worker"`
	Result any      `json:"result"`
}

// TaggedError is a failure labelled with its producer.
type TaggedError struct {
	Index  int      `json:"index"`
	Worker WorkerID `json:"worker"`
	Error  string   `json:"error"`
}

// MergedResult is an auxiliary view over a batch of outcomes.
type MergedResult struct {
	Results   []TaggedResult     `json:"results"`
	ByWorker  map[WorkerID][]any `json:"by_worker"`
	Errors    []TaggedError      `json:"errors,omitempty"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// MergeOutcomes collects successful results in input order, tagged by worker.
func MergeOutcomes(outcomes []Outcome) *MergedResult {
	m := &MergedResult{
		Results:  make([]TaggedResult, 0, len(outcomes)),
		ByWorker: make(map[WorkerID][]any),
	}
	for i, o := range outcomes {
		if !o.Success {
			m.Failed++
			m.Errors = append(m.Errors, TaggedError{Index: i, Worker: o.Worker, Error: o.Error})
			continue
		}
		m.Succeeded++
		r := cloneValue(o.Result)
		m.Results = append(m.Results, TaggedResult{Index: i, Worker: o.Worker, Result: r})
		m.ByWorker[o.Worker] = append(m.ByWorker[o.Worker], r)
	}
	return m
}

// Text renders the successful results as labelled sections.
func (m *MergedResult) Text() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	for i, r := range m.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", r.Worker, ResultText(r.Result))
	}
	return b.String()
}

// ResultText extracts displayable text from a worker result. Maps carrying a
// "result" string (the shape the bundled workers return) yield that string.
func ResultText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case map[string]any:
		if s, ok := v["result"].(string); ok {
			return s
		}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}
