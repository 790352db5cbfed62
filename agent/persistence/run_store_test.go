package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/crucible/config"
	"github.com/BaSui01/crucible/internal/cache"
	"github.com/BaSui01/crucible/internal/database"
	"github.com/BaSui01/crucible/workflow"
)

func newTestCache(t *testing.T) (*cache.Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(cache.Config{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager, mr
}

func newTestPool(t *testing.T) *database.PoolManager {
	t.Helper()
	pool, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         filepath.Join(t.TempDir(), "runs.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// storeFactories 每个后端都跑同一组行为测试
func storeFactories() map[string]func(t *testing.T) RunStore {
	return map[string]func(t *testing.T) RunStore{
		"memory": func(t *testing.T) RunStore {
			return NewMemoryRunStore()
		},
		"redis": func(t *testing.T) RunStore {
			manager, _ := newTestCache(t)
			return NewRedisRunStore(manager, time.Hour, zaptest.NewLogger(t))
		},
		"database": func(t *testing.T) RunStore {
			store, err := NewGormRunStore(context.Background(), newTestPool(t), zaptest.NewLogger(t))
			require.NoError(t, err)
			return store
		},
	}
}

func record(id, status string, degraded bool, created time.Time) *RunRecord {
	return &RunRecord{
		ID:        id,
		Objective: "objective " + id,
		Status:    status,
		Degraded:  degraded,
		State:     `{"run_id":"` + id + `"}`,
		CreatedAt: created,
	}
}

func TestRunStore_Conformance(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Run("SaveAndGet", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				require.NoError(t, store.Ping(ctx))

				rec := record("run-1", "completed", false, time.Time{})
				rec.Winner = "engineering_b"
				require.NoError(t, store.SaveRun(ctx, rec))
				assert.False(t, rec.CreatedAt.IsZero())
				assert.False(t, rec.UpdatedAt.IsZero())

				got, err := store.GetRun(ctx, "run-1")
				require.NoError(t, err)
				assert.Equal(t, "objective run-1", got.Objective)
				assert.Equal(t, "engineering_b", got.Winner)
				assert.Equal(t, rec.State, got.State)

				_, err = store.GetRun(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("SaveKeepsCreatedAt", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()

				rec := record("run-1", "running", false, time.Time{})
				require.NoError(t, store.SaveRun(ctx, rec))
				created := rec.CreatedAt

				update := record("run-1", "completed", true, time.Time{})
				require.NoError(t, store.SaveRun(ctx, update))

				got, err := store.GetRun(ctx, "run-1")
				require.NoError(t, err)
				assert.Equal(t, "completed", got.Status)
				assert.True(t, got.Degraded)
				assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)
			})

			t.Run("InvalidInput", func(t *testing.T) {
				store := factory(t)
				assert.ErrorIs(t, store.SaveRun(context.Background(), nil), ErrInvalidInput)
				assert.ErrorIs(t, store.SaveRun(context.Background(), &RunRecord{}), ErrInvalidInput)
			})

			t.Run("ListFilterAndPage", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				base := time.Now().Add(-time.Hour)

				require.NoError(t, store.SaveRun(ctx, record("a", "completed", false, base)))
				require.NoError(t, store.SaveRun(ctx, record("b", "degraded", true, base.Add(time.Minute))))
				require.NoError(t, store.SaveRun(ctx, record("c", "completed", false, base.Add(2*time.Minute))))
				require.NoError(t, store.SaveRun(ctx, record("d", "failed", false, base.Add(3*time.Minute))))

				all, err := store.ListRuns(ctx, RunFilter{})
				require.NoError(t, err)
				assert.Equal(t, []string{"d", "c", "b", "a"}, ids(all))

				completed, err := store.ListRuns(ctx, RunFilter{Status: []string{"completed"}})
				require.NoError(t, err)
				assert.Equal(t, []string{"c", "a"}, ids(completed))

				degraded := true
				onlyDegraded, err := store.ListRuns(ctx, RunFilter{Degraded: &degraded})
				require.NoError(t, err)
				assert.Equal(t, []string{"b"}, ids(onlyDegraded))

				after := base.Add(90 * time.Second)
				recent, err := store.ListRuns(ctx, RunFilter{CreatedAfter: &after})
				require.NoError(t, err)
				assert.Equal(t, []string{"d", "c"}, ids(recent))

				page, err := store.ListRuns(ctx, RunFilter{Offset: 1, Limit: 2})
				require.NoError(t, err)
				assert.Equal(t, []string{"c", "b"}, ids(page))

				empty, err := store.ListRuns(ctx, RunFilter{Offset: 10})
				require.NoError(t, err)
				assert.Empty(t, empty)
			})

			t.Run("Delete", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()

				require.NoError(t, store.SaveRun(ctx, record("run-1", "completed", false, time.Time{})))
				require.NoError(t, store.DeleteRun(ctx, "run-1"))

				_, err := store.GetRun(ctx, "run-1")
				assert.ErrorIs(t, err, ErrNotFound)
				assert.ErrorIs(t, store.DeleteRun(ctx, "run-1"), ErrNotFound)

				all, err := store.ListRuns(ctx, RunFilter{})
				require.NoError(t, err)
				assert.Empty(t, all)
			})

			t.Run("Cleanup", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()

				require.NoError(t, store.SaveRun(ctx, record("old", "completed", false, time.Time{})))
				time.Sleep(200 * time.Millisecond)
				require.NoError(t, store.SaveRun(ctx, record("new", "completed", false, time.Time{})))

				n, err := store.Cleanup(ctx, 100*time.Millisecond)
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				_, err = store.GetRun(ctx, "old")
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = store.GetRun(ctx, "new")
				assert.NoError(t, err)

				n, err = store.Cleanup(ctx, time.Hour)
				require.NoError(t, err)
				assert.Zero(t, n)
			})
		})
	}
}

func ids(records []*RunRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestMemoryRunStore_Closed(t *testing.T) {
	store := NewMemoryRunStore()
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
	assert.ErrorIs(t, store.SaveRun(ctx, record("x", "completed", false, time.Time{})), ErrStoreClosed)
	_, err := store.GetRun(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryRunStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, record("run-1", "completed", false, time.Time{})))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	got.Status = "mutated"

	again, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", again.Status)
}

func TestRedisRunStore_Expiry(t *testing.T) {
	manager, mr := newTestCache(t)
	store := NewRedisRunStore(manager, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, record("run-1", "completed", false, time.Time{})))
	assert.True(t, mr.Exists("test:run:data:run-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:run:data:run-1"))

	mr.FastForward(2 * time.Minute)

	runs, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	// 过期记录的索引项在列表时被清除
	members, err := mr.ZMembers("test:run:index")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestNewRunRecord(t *testing.T) {
	_, err := NewRunRecord(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewRunRecord(&workflow.WorkflowState{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	history := workflow.NewRunHistory("run-42")
	history.Complete(true, nil)
	state := &workflow.WorkflowState{
		RunID:     "run-42",
		Objective: "ship it",
		Context: map[string]any{
			"oracle_winner": "engineering_a",
			"plan":          "step one",
		},
		TeamOutputs: map[string]any{"discovery": "notes"},
		NextStage:   workflow.StageDone,
		Degraded:    true,
		Failures: []workflow.Failure{
			{Stage: "competitive_pair", Team: "engineering_b", Error: "boom"},
		},
		History: history,
	}

	rec, err := NewRunRecord(state)
	require.NoError(t, err)
	assert.Equal(t, "run-42", rec.ID)
	assert.Equal(t, "ship it", rec.Objective)
	assert.Equal(t, string(workflow.StatusDegraded), rec.Status)
	assert.True(t, rec.Degraded)
	assert.Equal(t, 1, rec.FailureCount)
	assert.Equal(t, "engineering_a", rec.Winner)
	assert.Equal(t, history.StartTime, rec.CreatedAt)

	decoded, err := rec.Decode()
	require.NoError(t, err)
	assert.Equal(t, "run-42", decoded.RunID)
	assert.Equal(t, "step one", decoded.Context["plan"])
	assert.Equal(t, "notes", decoded.TeamOutputs["discovery"])
	assert.Equal(t, workflow.StageDone, decoded.NextStage)
	require.Len(t, decoded.Failures, 1)
	assert.Equal(t, "engineering_b", decoded.Failures[0].Team)
	require.NotNil(t, decoded.History)
	assert.Equal(t, workflow.StatusDegraded, decoded.History.Status)
}

func TestNewRunRecord_WithoutHistory(t *testing.T) {
	rec, err := NewRunRecord(&workflow.WorkflowState{RunID: "r", Degraded: true})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusDegraded), rec.Status)
	assert.True(t, rec.CreatedAt.IsZero())

	rec, err = NewRunRecord(&workflow.WorkflowState{RunID: "r"})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusCompleted), rec.Status)
}

func TestRunRecord_DecodeInvalid(t *testing.T) {
	_, err := (&RunRecord{ID: "bad", State: "{"}).Decode()
	assert.Error(t, err)
}

func TestNewRunStore(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store, err := NewRunStore(ctx, config.PersistenceConfig{}, Backends{}, logger)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "none"}, Backends{}, logger)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "memory"}, Backends{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryRunStore{}, store)

	_, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "redis"}, Backends{}, logger)
	assert.Error(t, err)
	_, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "database"}, Backends{}, logger)
	assert.Error(t, err)
	_, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "etcd"}, Backends{}, logger)
	assert.Error(t, err)

	manager, _ := newTestCache(t)
	store, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "redis", Retention: time.Hour},
		Backends{Cache: manager}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RedisRunStore{}, store)

	store, err = NewRunStore(ctx, config.PersistenceConfig{Backend: "database"},
		Backends{Pool: newTestPool(t)}, logger)
	require.NoError(t, err)
	assert.IsType(t, &GormRunStore{}, store)
	assert.NoError(t, store.Ping(ctx))
}
