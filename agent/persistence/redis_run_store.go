package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/crucible/internal/cache"
)

// RedisRunStore is a Redis-based implementation of RunStore.
// Records are JSON strings indexed by a sorted set scored by update time.
type RedisRunStore struct {
	client    *redis.Client
	manager   *cache.Manager
	retention time.Duration
	logger    *zap.Logger
}

// NewRedisRunStore creates a run store on the shared cache connection.
// retention > 0 sets an expiry on every record.
func NewRedisRunStore(manager *cache.Manager, retention time.Duration, logger *zap.Logger) *RedisRunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRunStore{
		client:    manager.Client(),
		manager:   manager,
		retention: retention,
		logger:    logger.With(zap.String("component", "redis_run_store")),
	}
}

// Close is a no-op; the cache manager owns the connection
func (s *RedisRunStore) Close() error {
	return nil
}

// Ping checks if the store is healthy
func (s *RedisRunStore) Ping(ctx context.Context) error {
	return s.manager.Ping(ctx)
}

func (s *RedisRunStore) runKey(runID string) string {
	return s.manager.Key("run", "data", runID)
}

func (s *RedisRunStore) indexKey() string {
	return s.manager.Key("run", "index")
}

// SaveRun persists a run record
func (s *RedisRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidInput
	}

	if rec.CreatedAt.IsZero() {
		if old, err := s.GetRun(ctx, rec.ID); err == nil {
			rec.CreatedAt = old.CreatedAt
		}
	}
	rec.touch()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(rec.ID), data, s.retention)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.UpdatedAt.UnixNano()),
		Member: rec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *RedisRunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &rec, nil
}

// ListRuns retrieves runs matching the filter, newest first.
// Index entries whose record has expired are pruned on the way.
func (s *RedisRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*RunRecord, 0, len(ids))
	var stale []any
	for _, id := range ids {
		rec, err := s.GetRun(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.matches(rec) {
			result = append(result, rec)
		}
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune expired run index entries", zap.Error(err))
		}
	}

	sortNewestFirst(result)
	return filter.page(result), nil
}

// DeleteRun removes a run from the store
func (s *RedisRunStore) DeleteRun(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup removes runs last updated before now-olderThan
func (s *RedisRunStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan run index: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
		members[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to cleanup runs: %w", err)
	}
	return len(ids), nil
}
