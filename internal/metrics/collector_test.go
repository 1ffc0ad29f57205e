package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.handoffsTotal)
	assert.NotNil(t, collector.handoffDuration)
	assert.NotNil(t, collector.plansTotal)
	assert.NotNil(t, collector.reasoningRequests)
	assert.NotNil(t, collector.historyEntries)
}

func TestCollector_RecordHandoff(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHandoff("qa_agent", "success", 100*time.Millisecond)
	collector.RecordHandoff("qa_agent", "success", 50*time.Millisecond)
	collector.RecordHandoff("qa_agent", "failure", 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.handoffsTotal.WithLabelValues("qa_agent", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.handoffsTotal.WithLabelValues("qa_agent", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.handoffDuration))
}

func TestCollector_RecordPlan(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordPlan("parallel", "completed", 3, 2*time.Second)
	collector.RecordPlanTimeout("parallel", "timeout")

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.plansTotal.WithLabelValues("parallel", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.planTimeouts.WithLabelValues("parallel", "timeout")))
	assert.Greater(t, testutil.CollectAndCount(collector.planDuration), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.planHandoffs), 0)
}

func TestCollector_RecordReasoningRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordReasoningRequest("claude-sonnet-4-5", "success", 500*time.Millisecond, 100, 50)

	assert.Equal(t, float64(100), testutil.ToFloat64(collector.reasoningTokens.WithLabelValues("claude-sonnet-4-5", "input")))
	assert.Equal(t, float64(50), testutil.ToFloat64(collector.reasoningTokens.WithLabelValues("claude-sonnet-4-5", "output")))
}

func TestCollector_History(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetHistoryEntries(7)
	collector.RecordHistorySinkError("redis")

	assert.Equal(t, float64(7), testutil.ToFloat64(collector.historyEntries))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.historySinkErrors.WithLabelValues("redis")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordHandoff("qa_agent", "success", time.Millisecond)
		collector.RecordPlan("chain", "completed", 1, time.Millisecond)
		collector.RecordPlanTimeout("chain", "timeout")
		collector.RecordReasoningRequest("m", "error", time.Millisecond, 0, 0)
		collector.SetHistoryEntries(1)
		collector.RecordHistorySinkError("database")
	})
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHandoff("web_researcher", "success", 100*time.Millisecond)
			collector.RecordPlan("sequential", "completed", 2, time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.handoffsTotal.WithLabelValues("web_researcher", "success")))
}

func TestCollector_CustomRegistryHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry("hub", registry, registry, zap.NewNop())

	collector.RecordHandoff("citation_manager", "success", time.Second)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hub_handoffs_total{status="success",worker="citation_manager"} 1`)
}
