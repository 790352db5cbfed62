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

type flakyTeam struct {
	name  string
	fail  bool
	calls int
}

func (f *flakyTeam) Name() string { return f.name }

func (f *flakyTeam) Run(context.Context, string, map[string]any) (any, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("upstream down")
	}
	return "ok", nil
}

func TestNewBreakerTeam_DisabledReturnsInner(t *testing.T) {
	inner := &flakyTeam{name: "plain"}
	assert.Same(t, inner, NewBreakerTeam(inner, BreakerConfig{}, nil))
}

func TestBreakerTeam_OpensAfterThreshold(t *testing.T) {
	inner := &flakyTeam{name: "flaky", fail: true}
	team := NewBreakerTeam(inner, BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Hour}, zaptest.NewLogger(t))
	breaker := team.(*BreakerTeam)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := team.Run(ctx, "objective", nil)
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, breaker.State())

	_, err := team.Run(ctx, "objective", nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrTeamExecution))
	assert.Equal(t, 2, inner.calls, "open circuit must not call the team")
}

func TestBreakerTeam_HalfOpenProbe(t *testing.T) {
	inner := &flakyTeam{name: "flaky", fail: true}
	team := NewBreakerTeam(inner, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond}, nil)
	breaker := team.(*BreakerTeam)
	ctx := context.Background()

	_, _ = team.Run(ctx, "objective", nil)
	require.Equal(t, CircuitOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)
	inner.fail = false
	out, err := team.Run(ctx, "objective", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, CircuitClosed, breaker.State())
}

func TestBreakerTeam_FailedProbeReopens(t *testing.T) {
	inner := &flakyTeam{name: "flaky", fail: true}
	team := NewBreakerTeam(inner, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond}, nil)
	breaker := team.(*BreakerTeam)

	_, _ = team.Run(context.Background(), "objective", nil)
	time.Sleep(30 * time.Millisecond)
	_, err := team.Run(context.Background(), "objective", nil)
	require.Error(t, err)
	assert.Equal(t, CircuitOpen, breaker.State())
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half_open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestBreakAll_WrapsEveryMember(t *testing.T) {
	teams := BreakAll(defaultTeams(), BreakerConfig{FailureThreshold: 3}, nil)
	for id, b := range teams {
		for _, m := range b.Members {
			_, ok := m.(*BreakerTeam)
			assert.True(t, ok, id)
		}
	}
	_, err := NewEngine(teams)
	assert.NoError(t, err)
}
