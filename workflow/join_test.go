package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/crucible/types"
)

func TestJoinN_PreservesMemberOrder(t *testing.T) {
	members := []Team{
		sleepingTeam("slow", 30*time.Millisecond, "slow out"),
		staticTeam("fast", "fast out"),
	}
	results := JoinN(context.Background(), members, "objective", nil, time.Second, zaptest.NewLogger(t))

	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Team)
	assert.Equal(t, "slow out", results[0].Output)
	assert.Equal(t, "fast", results[1].Team)
	assert.False(t, results[1].Failed())
}

func TestJoinN_FailureIsIsolated(t *testing.T) {
	members := []Team{
		failingTeam("broken", errors.New("boom")),
		staticTeam("healthy", 42),
	}
	results := JoinN(context.Background(), members, "objective", nil, 0, nil)

	assert.True(t, results[0].Failed())
	assert.Nil(t, results[0].Output)
	assert.True(t, types.IsErrorCode(results[0].Err, types.ErrTeamExecution))
	assert.Equal(t, 42, results[1].Output)
}

func TestJoinN_RecoversPanics(t *testing.T) {
	panicky := NewFuncTeam("panicky", func(context.Context, string, map[string]any) (any, error) {
		panic("unexpected")
	})
	results := JoinN(context.Background(), []Team{panicky, staticTeam("ok", "fine")}, "objective", nil, time.Second, nil)

	require.True(t, results[0].Failed())
	assert.Contains(t, results[0].Err.Error(), "panicked")
	assert.Equal(t, "fine", results[1].Output)
}

func TestJoinN_TimeoutDoesNotWaitForStubbornMember(t *testing.T) {
	stubborn := NewFuncTeam("stubborn", func(context.Context, string, map[string]any) (any, error) {
		time.Sleep(time.Second)
		return "late", nil
	})

	start := time.Now()
	results := JoinN(context.Background(), []Team{stubborn}, "objective", nil, 30*time.Millisecond, nil)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.True(t, types.IsErrorCode(results[0].Err, types.ErrTimeout))
	assert.True(t, types.IsRetryable(results[0].Err))
}

func TestJoinN_MembersGetIndependentSnapshots(t *testing.T) {
	writer := NewFuncTeam("writer", func(_ context.Context, _ string, snapshot map[string]any) (any, error) {
		snapshot["written"] = true
		return nil, nil
	})
	reader := NewFuncTeam("reader", func(_ context.Context, _ string, snapshot map[string]any) (any, error) {
		time.Sleep(10 * time.Millisecond)
		_, ok := snapshot["written"]
		return ok, nil
	})
	shared := map[string]any{"base": 1}

	results := JoinN(context.Background(), []Team{writer, reader}, "objective", shared, time.Second, nil)
	assert.Equal(t, false, results[1].Output)
	assert.NotContains(t, shared, "written")
}

func TestJoinN_PassesTeamNameInContext(t *testing.T) {
	team := NewFuncTeam("named", func(ctx context.Context, _ string, _ map[string]any) (any, error) {
		name, _ := types.TeamName(ctx)
		return name, nil
	})
	results := JoinN(context.Background(), []Team{team}, "objective", nil, 0, nil)
	assert.Equal(t, "named", results[0].Output)
}
