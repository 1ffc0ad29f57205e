package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/config"
	"github.com/BaSui01/researchhub/internal/database"
	"github.com/BaSui01/researchhub/types"
)

func sampleEntry(seq int64, success bool) handoff.HistoryEntry {
	h := handoff.MustHandoff(handoff.WorkerDocumentAnalyzer, "analyze findings",
		map[string]any{"analysis_type": "general"},
		handoff.WithPriority(2),
		handoff.WithMetadata(map[string]any{"source": "test"}),
	)
	out := handoff.Succeeded(handoff.WorkerDocumentAnalyzer, map[string]any{"result": "ok"}, nil)
	if !success {
		out = handoff.FailedFromError(handoff.WorkerDocumentAnalyzer, types.NewError(types.ErrUpstreamError, "boom"))
	}
	out.Elapsed = 1500 * time.Millisecond
	return handoff.HistoryEntry{
		Seq:       seq,
		PlanID:    "plan-1",
		Handoff:   h,
		Outcome:   out,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// Record
// =============================================================================

func TestNewRecord(t *testing.T) {
	r := NewRecord(sampleEntry(7, false))
	assert.Equal(t, int64(7), r.Seq)
	assert.Equal(t, "plan-1", r.PlanID)
	assert.Equal(t, "document_analyzer", r.Worker)
	assert.Equal(t, 2, r.Priority)
	assert.Equal(t, "general", r.Context["analysis_type"])
	assert.Equal(t, "test", r.Metadata["source"])
	assert.False(t, r.Success)
	assert.Nil(t, r.Result)
	assert.Contains(t, r.Error, "boom")
	assert.Equal(t, string(types.ErrUpstreamError), r.ErrorCode)

	data, err := r.Marshal()
	require.NoError(t, err)
	back, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, r.Elapsed, back.Elapsed)
	assert.True(t, r.Timestamp.Equal(back.Timestamp))
}

// =============================================================================
// Redis sink
// =============================================================================

func setupRedisSink(t *testing.T, maxLen int64) (*miniredis.Miniredis, *RedisHistorySink) {
	t.Helper()
	mr := miniredis.RunT(t)
	sink, err := NewRedisHistorySink(
		config.RedisConfig{Addr: mr.Addr()},
		config.HistoryConfig{RedisKey: "test:history", RedisMaxLen: maxLen},
		zaptest.NewLogger(t),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return mr, sink
}

func TestRedisHistorySink_Record(t *testing.T) {
	mr, sink := setupRedisSink(t, 0)
	ctx := context.Background()

	assert.Equal(t, "redis", sink.Name())
	require.NoError(t, sink.Record(ctx, sampleEntry(1, true)))
	require.NoError(t, sink.Record(ctx, sampleEntry(2, false)))

	items, err := mr.List("test:history")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	records, err := sink.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].Seq)
	assert.True(t, records[0].Success)
	assert.Equal(t, int64(2), records[1].Seq)
	assert.Contains(t, records[1].Error, "boom")
}

func TestRedisHistorySink_TrimsToMaxLen(t *testing.T) {
	_, sink := setupRedisSink(t, 3)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, sink.Record(ctx, sampleEntry(i, true)))
	}
	records, err := sink.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), records[0].Seq)
	assert.Equal(t, int64(5), records[2].Seq)

	last, err := sink.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, int64(5), last[0].Seq)
}

func TestRedisHistorySink_ServerDown(t *testing.T) {
	mr, sink := setupRedisSink(t, 0)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, sink.Record(ctx, sampleEntry(1, true)))
}

func TestNewRedisHistorySink_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisHistorySink(config.RedisConfig{Addr: addr}, config.HistoryConfig{}, nil)
	assert.Error(t, err)
}

func TestNewRedisHistorySinkFromClient_DefaultKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisHistorySinkFromClient(client, "", 0, nil)
	defer sink.Close()

	assert.Equal(t, defaultRedisKey, sink.Key())
	assert.NoError(t, sink.Ping(context.Background()))
}

// =============================================================================
// SQL sink
// =============================================================================

func setupSQLiteSink(t *testing.T) *SQLHistorySink {
	t.Helper()
	pool, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)

	sink, err := NewSQLHistorySink(context.Background(), pool, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestSQLHistorySink_Record(t *testing.T) {
	sink := setupSQLiteSink(t)
	ctx := context.Background()

	assert.Equal(t, "database", sink.Name())
	assert.Equal(t, defaultHistoryTable, sink.Table())

	require.NoError(t, sink.Record(ctx, sampleEntry(2, false)))
	require.NoError(t, sink.Record(ctx, sampleEntry(1, true)))

	n, err := sink.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := sink.ByPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0].Seq)
	assert.True(t, rows[0].Success)
	assert.JSONEq(t, `{"result":"ok"}`, rows[0].Result)
	assert.JSONEq(t, `{"analysis_type":"general"}`, rows[0].Context)
	assert.Equal(t, int64(1500), rows[0].ElapsedMS)

	assert.False(t, rows[1].Success)
	assert.Contains(t, rows[1].Error, "boom")
	assert.Equal(t, string(types.ErrUpstreamError), rows[1].ErrorCode)
	assert.Empty(t, rows[1].Result)

	other, err := sink.ByPlan(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLHistorySink_InsertFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	pool, err := database.NewPoolManager(gormDB, database.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)

	sink := &SQLHistorySink{pool: pool, table: "handoff_history", logger: zap.NewNop()}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "handoff_history"`).WillReturnError(errors.New("permission denied for table"))
	mock.ExpectRollback()

	err = sink.Record(context.Background(), sampleEntry(1, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLHistorySink_NilPool(t *testing.T) {
	_, err := NewSQLHistorySink(context.Background(), nil, "", nil)
	assert.Error(t, err)
}

// =============================================================================
// Factory + coordinator wiring
// =============================================================================

func TestNewHistorySink(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	sink, closer, err := NewHistorySink(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, sink)
	assert.NoError(t, closer.Close())

	mr := miniredis.RunT(t)
	cfg.History.Sink = SinkRedis
	cfg.Redis.Addr = mr.Addr()
	sink, closer, err = NewHistorySink(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "redis", sink.Name())
	assert.NoError(t, closer.Close())

	cfg.History.Sink = SinkDatabase
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", Name: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1}
	sink, closer, err = NewHistorySink(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "database", sink.Name())
	assert.NoError(t, closer.Close())

	cfg.History.Sink = "kafka"
	_, _, err = NewHistorySink(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestCoordinatorMirrorsToRedis(t *testing.T) {
	_, sink := setupRedisSink(t, 0)

	worker := handoff.NewWorkerFunc(handoff.WorkerQA, func(_ context.Context, task string, _ map[string]any) handoff.Outcome {
		return handoff.Succeeded(handoff.WorkerQA, map[string]any{"result": "answer to " + task}, nil)
	})
	coord, err := handoff.NewCoordinator([]handoff.Worker{worker}, handoff.WithHistorySink(sink))
	require.NoError(t, err)

	ctx := context.Background()
	out := coord.ExecuteHandoff(ctx, handoff.MustHandoff(handoff.WorkerQA, "what?", nil))
	require.True(t, out.Success)
	require.NoError(t, coord.Close())

	records, err := sink.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "qa_agent", records[0].Worker)
	assert.Equal(t, int64(coord.HistoryLen()), int64(len(records)))
}
