package handoff

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HistorySink receives a copy of every entry appended to a Coordinator's
// history, in append order. Sink errors never affect outcomes or the
// in-memory log.
type HistorySink interface {
	Name() string
	Record(ctx context.Context, entry HistoryEntry) error
}

// History is an append-only log of executed handoffs, safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	seq     int64
}

// NewHistory creates an empty log.
func NewHistory() *History {
	return &History{entries: make([]HistoryEntry, 0, 64)}
}

// Append records one entry and returns a copy of what was stored.
func (h *History) Append(planID string, ho Handoff, out Outcome, ts time.Time) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	entry := HistoryEntry{
		Seq:       h.seq,
		PlanID:    planID,
		Handoff:   ho.clone(),
		Outcome:   out.clone(),
		Timestamp: ts,
	}
	h.entries = append(h.entries, entry)
	return entry.clone()
}

// Entries returns an ordered copy of the log.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.clone()
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear drops every entry. Sequence numbers keep increasing.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make([]HistoryEntry, 0, 64)
}

// Failures returns entries whose outcome failed.
func (h *History) Failures() []HistoryEntry {
	return h.filter(func(e HistoryEntry) bool { return !e.Outcome.Success })
}

// ByPlan returns entries recorded for planID.
func (h *History) ByPlan(planID string) []HistoryEntry {
	return h.filter(func(e HistoryEntry) bool { return e.PlanID == planID })
}

func (h *History) filter(keep func(HistoryEntry) bool) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []HistoryEntry
	for _, e := range h.entries {
		if keep(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// WorkerTiming aggregates elapsed time for one worker.
type WorkerTiming struct {
	Worker    WorkerID      `json:"worker"`
	Calls     int           `json:"calls"`
	Successes int           `json:"successes"`
	Failures  int           `json:"failures"`
	Total     time.Duration `json:"total"`
	Max       time.Duration `json:"max"`
}

// Average returns the mean elapsed time per call.
func (w WorkerTiming) Average() time.Duration {
	if w.Calls == 0 {
		return 0
	}
	return w.Total / time.Duration(w.Calls)
}

// TimingReport is a per-worker summary of the log, in canonical worker order.
type TimingReport struct {
	Workers []WorkerTiming `json:"workers"`
	Total   time.Duration  `json:"total"`
	Entries int            `json:"entries"`
}

// TimingReport scans the log and aggregates per worker.
func (h *History) TimingReport() TimingReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byWorker := make(map[WorkerID]*WorkerTiming)
	report := TimingReport{Entries: len(h.entries)}
	for _, e := range h.entries {
		wt, ok := byWorker[e.Outcome.Worker]
		if !ok {
			wt = &WorkerTiming{Worker: e.Outcome.Worker}
			byWorker[e.Outcome.Worker] = wt
		}
		wt.Calls++
		if e.Outcome.Success {
			wt.Successes++
		} else {
			wt.Failures++
		}
		wt.Total += e.Outcome.Elapsed
		if e.Outcome.Elapsed > wt.Max {
			wt.Max = e.Outcome.Elapsed
		}
		report.Total += e.Outcome.Elapsed
	}

	for _, id := range knownWorkers {
		if wt, ok := byWorker[id]; ok {
			report.Workers = append(report.Workers, *wt)
			delete(byWorker, id)
		}
	}
	// unknown identities (registry misses) go last
	rest := make([]WorkerTiming, 0, len(byWorker))
	for _, wt := range byWorker {
		rest = append(rest, *wt)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Worker < rest[j].Worker })
	report.Workers = append(report.Workers, rest...)
	return report
}
