package handoff

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/internal/metrics"
)

const (
	sinkBuffer  = 256
	sinkTimeout = 5 * time.Second
)

// sinkWriter mirrors history entries to sinks from a single background
// goroutine, so a slow sink never holds up dispatch. Entries reach every
// sink in append order.
type sinkWriter struct {
	sinks   []HistorySink
	entries chan HistoryEntry
	done    chan struct{}
	metrics *metrics.Collector
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func newSinkWriter(sinks []HistorySink, m *metrics.Collector, logger *zap.Logger) *sinkWriter {
	w := &sinkWriter{
		sinks:   sinks,
		entries: make(chan HistoryEntry, sinkBuffer),
		done:    make(chan struct{}),
		metrics: m,
		logger:  logger,
	}
	go w.run()
	return w
}

// enqueue never blocks. A full buffer or a closed writer drops the entry.
func (w *sinkWriter) enqueue(entry HistoryEntry) {
	if w == nil {
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped(entry, "writer closed")
		return
	}
	select {
	case w.entries <- entry:
	default:
		w.dropped(entry, "buffer full")
	}
}

func (w *sinkWriter) dropped(entry HistoryEntry, reason string) {
	for _, sink := range w.sinks {
		w.metrics.RecordHistorySinkError(sink.Name())
	}
	w.logger.Warn("history entry not mirrored",
		zap.Int64("seq", entry.Seq),
		zap.String("reason", reason),
	)
}

func (w *sinkWriter) run() {
	defer close(w.done)
	for entry := range w.entries {
		w.write(entry)
	}
}

func (w *sinkWriter) write(entry HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	for _, sink := range w.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			w.metrics.RecordHistorySinkError(sink.Name())
			w.logger.Warn("history sink write failed",
				zap.String("sink", sink.Name()),
				zap.Int64("seq", entry.Seq),
				zap.Error(err),
			)
		}
	}
}

// close stops accepting entries and waits for queued ones to be written.
func (w *sinkWriter) close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.entries)
	}
	w.mu.Unlock()
	<-w.done
}
