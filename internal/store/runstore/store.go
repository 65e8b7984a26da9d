// Package runstore persists backtest runs, their ordered lifecycle
// events, and equity snapshots using Gorm + SQLite.
package runstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run store path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunModel{}, &EventModel{}, &SnapshotModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a little parallelism for HTTP reads while the
	// runner writes.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) InsertRun(ctx context.Context, run RunModel) error {
	now := time.Now().UnixMilli()
	run.CreatedAtUnix = now
	run.UpdatedAtUnix = now
	return s.db.WithContext(ctx).Create(&run).Error
}

func (s *Store) UpdateStatus(ctx context.Context, runID string, status RunStatus, message string) error {
	return s.db.WithContext(ctx).Model(&RunModel{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":     string(status),
			"message":    message,
			"updated_at": time.Now().UnixMilli(),
		}).Error
}

// UpdateSummary writes final statistics when a run completes.
func (s *Store) UpdateSummary(ctx context.Context, runID string, status RunStatus, run RunModel, message string) error {
	return s.db.WithContext(ctx).Model(&RunModel{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":           string(status),
			"message":          message,
			"final_balance":    run.FinalBalance,
			"profit":           run.Profit,
			"return_pct":       run.ReturnPct,
			"win_rate":         run.WinRate,
			"max_drawdown_pct": run.MaxDrawdownPct,
			"orders":           run.Orders,
			"fills":            run.Fills,
			"updated_at":       time.Now().UnixMilli(),
		}).Error
}

func (s *Store) GetRun(ctx context.Context, runID string) (RunModel, error) {
	var run RunModel
	err := s.db.WithContext(ctx).First(&run, "id = ?", runID).Error
	return run, err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []RunModel
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// AppendEvents persists a batch in sequence order.
func (s *Store) AppendEvents(ctx context.Context, events []EventModel) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(events, 200).Error
}

func (s *Store) ListEvents(ctx context.Context, runID string) ([]EventModel, error) {
	var events []EventModel
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq ASC").
		Find(&events).Error
	return events, err
}

func (s *Store) InsertSnapshot(ctx context.Context, snap SnapshotModel) error {
	return s.db.WithContext(ctx).Create(&snap).Error
}

func (s *Store) ListSnapshots(ctx context.Context, runID string) ([]SnapshotModel, error) {
	var snaps []SnapshotModel
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("ts ASC").
		Find(&snaps).Error
	return snaps, err
}
