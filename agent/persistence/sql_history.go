package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/internal/database"
)

const (
	defaultHistoryTable = "handoff_history"
	writeRetries        = 2
)

// HistoryRow is the relational layout of a mirrored history entry.
type HistoryRow struct {
	ID         uint   `gorm:"primaryKey"`
	Seq        int64  `gorm:"index"`
	PlanID     string `gorm:"size:64;index"`
	Worker     string `gorm:"size:64;index"`
	Task       string `gorm:"type:text"`
	Priority   int
	Context    string `gorm:"type:text"`
	Metadata   string `gorm:"type:text"`
	Success    bool
	Result     string `gorm:"type:text"`
	Error      string `gorm:"type:text"`
	ErrorCode  string `gorm:"size:64"`
	ElapsedMS  int64
	RecordedAt time.Time `gorm:"index"`
}

// SQLHistorySink inserts history records into a relational table.
type SQLHistorySink struct {
	pool   *database.PoolManager
	table  string
	logger *zap.Logger
}

// NewSQLHistorySink migrates table and returns a sink writing through pool.
func NewSQLHistorySink(ctx context.Context, pool *database.PoolManager, table string, logger *zap.Logger) (*SQLHistorySink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = defaultHistoryTable
	}
	if err := pool.DB().WithContext(ctx).Table(table).AutoMigrate(&HistoryRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", table, err)
	}
	return &SQLHistorySink{
		pool:   pool,
		table:  table,
		logger: logger.With(zap.String("component", "sql_history_sink")),
	}, nil
}

// Name implements handoff.HistorySink.
func (s *SQLHistorySink) Name() string { return "database" }

// Table returns the destination table name.
func (s *SQLHistorySink) Table() string { return s.table }

// Record implements handoff.HistorySink.
func (s *SQLHistorySink) Record(ctx context.Context, entry handoff.HistoryEntry) error {
	row, err := newHistoryRow(NewRecord(entry))
	if err != nil {
		return err
	}
	err = s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Table(s.table).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert history record %d: %w", entry.Seq, err)
	}
	s.logger.Debug("history record mirrored", zap.Int64("seq", entry.Seq), zap.String("table", s.table))
	return nil
}

// ByPlan returns the rows mirrored for planID ordered by sequence.
func (s *SQLHistorySink) ByPlan(ctx context.Context, planID string) ([]HistoryRow, error) {
	var rows []HistoryRow
	err := s.pool.DB().WithContext(ctx).Table(s.table).
		Where("plan_id = ?", planID).
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}

// Count returns the number of mirrored rows.
func (s *SQLHistorySink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.DB().WithContext(ctx).Table(s.table).Count(&n).Error
	return n, err
}

// Close closes the underlying pool.
func (s *SQLHistorySink) Close() error {
	return s.pool.Close()
}

func newHistoryRow(r Record) (HistoryRow, error) {
	ctxJSON, err := jsonText(r.Context)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("failed to encode context: %w", err)
	}
	mdJSON, err := jsonText(r.Metadata)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	resJSON, err := jsonText(r.Result)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("failed to encode result: %w", err)
	}
	return HistoryRow{
		Seq:        r.Seq,
		PlanID:     r.PlanID,
		Worker:     r.Worker,
		Task:       r.Task,
		Priority:   r.Priority,
		Context:    ctxJSON,
		Metadata:   mdJSON,
		Success:    r.Success,
		Result:     resJSON,
		Error:      r.Error,
		ErrorCode:  r.ErrorCode,
		ElapsedMS:  r.Elapsed.Milliseconds(),
		RecordedAt: r.Timestamp,
	}, nil
}

func jsonText(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
