package critic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGate_MergeAllApproved(t *testing.T) {
	t.Parallel()

	g := NewGate(0)
	merged := g.Merge([]NamedVerdict{
		{Name: "a", Verdict: Verdict{Approved: true, Fixes: []string{"f1"}, Score: 0.2, Notes: "ok"}},
		{Name: "b", Verdict: Verdict{Approved: true, Fixes: []string{"f2", "f3"}, Score: 0.5}},
	})

	assert.True(t, merged.Approved)
	assert.Equal(t, []string{"f1", "f2", "f3"}, merged.Fixes)
	assert.Equal(t, 0.5, merged.Score)
	assert.Equal(t, "a: ok", merged.Notes)
}

func TestGate_MergeOneRejects(t *testing.T) {
	t.Parallel()

	merged := NewGate(0).Merge([]NamedVerdict{
		{Name: "a", Verdict: Verdict{Approved: true}},
		{Name: "b", Verdict: Verdict{Approved: false, Score: 0.9, Notes: "leaks"}},
	})
	assert.False(t, merged.Approved)
	assert.Equal(t, 0.9, merged.Score)
}

func TestGate_Threshold(t *testing.T) {
	t.Parallel()

	verdicts := []NamedVerdict{
		{Name: "a", Verdict: Verdict{Approved: true}},
		{Name: "b", Verdict: Verdict{Approved: true}},
		{Name: "c", Verdict: Verdict{Approved: false}},
	}
	assert.True(t, NewGate(0.6).Merge(verdicts).Approved)
	assert.False(t, NewGate(0.7).Merge(verdicts).Approved)
}

func TestGate_Empty(t *testing.T) {
	t.Parallel()

	merged := NewGate(0).Merge(nil)
	assert.True(t, merged.Approved)
	assert.Equal(t, "no critics", merged.Notes)
	assert.NotNil(t, merged.Fixes)

	var nilGate *Gate
	assert.True(t, nilGate.Merge([]NamedVerdict{{Name: "a", Verdict: Verdict{Approved: true}}}).Approved)
}

func TestPanel_ReviewOrderAndErrors(t *testing.T) {
	t.Parallel()

	slow := NewCriticFunc("slow", func(ctx context.Context, output any, _ map[string]any) (Verdict, error) {
		time.Sleep(20 * time.Millisecond)
		return Verdict{Approved: true, Fixes: []string{"slow-fix"}}, nil
	})
	fast := NewCriticFunc("fast", func(ctx context.Context, output any, _ map[string]any) (Verdict, error) {
		return Verdict{Approved: true, Fixes: []string{"fast-fix"}}, nil
	})
	broken := NewCriticFunc("broken", func(ctx context.Context, output any, _ map[string]any) (Verdict, error) {
		return Verdict{}, errors.New("backend down")
	})

	p := NewPanel(nil, zap.NewNop(), slow, fast, broken)
	merged, individual := p.Review(context.Background(), "out", nil)

	assert.Len(t, individual, 3)
	assert.Equal(t, "slow", individual[0].Name)
	assert.Equal(t, "fast", individual[1].Name)
	assert.Equal(t, "broken", individual[2].Name)
	assert.False(t, individual[2].Verdict.Approved)

	assert.False(t, merged.Approved)
	assert.Equal(t, []string{"slow-fix", "fast-fix"}, merged.Fixes)
	assert.Equal(t, 1.0, merged.Score)
}

func TestPanel_RunsCriticsConcurrently(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	mk := func(name string) Critic {
		return NewCriticFunc(name, func(ctx context.Context, output any, _ map[string]any) (Verdict, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
			return Verdict{Approved: true}, nil
		})
	}

	p := NewPanel(NewGate(0), nil, mk("a"), mk("b"), mk("c"))
	merged, _ := p.Review(context.Background(), nil, nil)
	assert.True(t, merged.Approved)
	assert.Equal(t, int32(3), peak.Load())
	assert.Len(t, p.Critics(), 3)
}
