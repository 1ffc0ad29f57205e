package persistence

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/researchhub/agent/handoff"
)

// Record is the serialised form of a history entry shared by all sinks.
type Record struct {
	Seq       int64          `json:"seq"`
	PlanID    string         `json:"plan_id,omitempty"`
	Worker    string         `json:"worker"`
	Task      string         `json:"task"`
	Priority  int            `json:"priority"`
	Context   map[string]any `json:"context,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Success   bool           `json:"success"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Elapsed   time.Duration  `json:"elapsed_ns"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRecord flattens entry into a Record.
func NewRecord(entry handoff.HistoryEntry) Record {
	return Record{
		Seq:       entry.Seq,
		PlanID:    entry.PlanID,
		Worker:    string(entry.Handoff.Worker()),
		Task:      entry.Handoff.Task(),
		Priority:  entry.Handoff.Priority(),
		Context:   entry.Handoff.ContextCopy(),
		Metadata:  entry.Handoff.Metadata(),
		Success:   entry.Outcome.Success,
		Result:    entry.Outcome.Result,
		Error:     entry.Outcome.Error,
		ErrorCode: string(entry.Outcome.ErrorCode()),
		Elapsed:   entry.Outcome.Elapsed,
		Timestamp: entry.Timestamp.UTC(),
	}
}

// Marshal encodes the record as JSON.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord decodes a record produced by Marshal.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(data, &r)
	return r, err
}
