package handoff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedWorker returns a fixed outcome after an optional delay and counts calls.
type scriptedWorker struct {
	id       WorkerID
	delay    time.Duration
	fail     string
	result   any
	honorCtx bool
	calls    atomic.Int64

	mu     sync.Mutex
	inputs []map[string]any
}

func (w *scriptedWorker) ID() WorkerID { return w.id }

func (w *scriptedWorker) Execute(ctx context.Context, task string, input map[string]any) Outcome {
	w.calls.Add(1)
	w.mu.Lock()
	w.inputs = append(w.inputs, input)
	w.mu.Unlock()

	if w.delay > 0 {
		if w.honorCtx {
			select {
			case <-time.After(w.delay):
			case <-ctx.Done():
				return Failed(w.id, ctx.Err().Error(), nil)
			}
		} else {
			time.Sleep(w.delay)
		}
	}
	if w.fail != "" {
		return Failed(w.id, w.fail, nil)
	}
	result := w.result
	if result == nil {
		result = string(w.id) + ":" + task
	}
	return Succeeded(w.id, result, nil)
}

func (w *scriptedWorker) lastInput() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.inputs) == 0 {
		return nil
	}
	return w.inputs[len(w.inputs)-1]
}

func newTestCoordinator(t *testing.T, workers []Worker, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := NewCoordinator(workers, opts...)
	require.NoError(t, err)
	return c
}

// roster builds one scripted worker per known identity.
func roster() map[WorkerID]*scriptedWorker {
	out := make(map[WorkerID]*scriptedWorker, len(knownWorkers))
	for _, id := range knownWorkers {
		out[id] = &scriptedWorker{id: id}
	}
	return out
}

func asWorkers(m map[WorkerID]*scriptedWorker) []Worker {
	ws := make([]Worker, 0, len(m))
	for _, id := range knownWorkers {
		if w, ok := m[id]; ok {
			ws = append(ws, w)
		}
	}
	return ws
}

type memorySink struct {
	mu      sync.Mutex
	entries []HistoryEntry
	err     error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Record(_ context.Context, e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var errSinkDown = errors.New("sink down")

func atomicAdd(p *int64, d int64) int64 { return atomic.AddInt64(p, d) }

func loadInt(p *int64) int64 { return atomic.LoadInt64(p) }

func atomicMax(p *int64, v int64) {
	for {
		cur := atomic.LoadInt64(p)
		if v <= cur || atomic.CompareAndSwapInt64(p, cur, v) {
			return
		}
	}
}
