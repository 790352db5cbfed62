package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/crucible/internal/database"
)

const saveRetries = 3

// GormRunStore is a relational implementation of RunStore.
type GormRunStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewGormRunStore creates the store and migrates the runs table
func NewGormRunStore(ctx context.Context, pool *database.PoolManager, logger *zap.Logger) (*GormRunStore, error) {
	if pool == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.DB().WithContext(ctx).AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate runs table: %w", err)
	}
	return &GormRunStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "gorm_run_store")),
	}, nil
}

// Close is a no-op; the pool is closed by its owner
func (s *GormRunStore) Close() error {
	return nil
}

// Ping checks if the store is healthy
func (s *GormRunStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveRun upserts a run record inside a retried transaction
func (s *GormRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidInput
	}

	return s.pool.WithTransactionRetry(ctx, saveRetries, func(tx *gorm.DB) error {
		if rec.CreatedAt.IsZero() {
			var old RunRecord
			err := tx.Select("created_at").First(&old, "id = ?", rec.ID).Error
			if err == nil {
				rec.CreatedAt = old.CreatedAt
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		rec.touch()
		return tx.Save(rec).Error
	})
}

// GetRun retrieves a run by ID
func (s *GormRunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := s.pool.DB().WithContext(ctx).First(&rec, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &rec, nil
}

// ListRuns retrieves runs matching the filter, newest first
func (s *GormRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	q := s.pool.DB().WithContext(ctx).Model(&RunRecord{})
	if len(filter.Status) > 0 {
		q = q.Where("status IN ?", filter.Status)
	}
	if filter.Degraded != nil {
		q = q.Where("degraded = ?", *filter.Degraded)
	}
	if filter.CreatedAfter != nil {
		q = q.Where("created_at > ?", *filter.CreatedAfter)
	}
	q = q.Order("created_at DESC").Order("id ASC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var records []*RunRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// DeleteRun removes a run from the store
func (s *GormRunStore) DeleteRun(ctx context.Context, runID string) error {
	res := s.pool.DB().WithContext(ctx).Delete(&RunRecord{}, "id = ?", runID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup removes runs last updated before now-olderThan
func (s *GormRunStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.pool.DB().WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&RunRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cleanup runs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("cleaned up runs", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}
