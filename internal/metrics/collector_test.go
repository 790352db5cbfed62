package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	c, _ := newTestCollector(t)

	assert.NotNil(t, c.stageDuration)
	assert.NotNil(t, c.stageTotal)
	assert.NotNil(t, c.teamExecutionsTotal)
	assert.NotNil(t, c.criticVerdictsTotal)
	assert.NotNil(t, c.oracleSettledPrice)
	assert.NotNil(t, c.pruningNovelty)
}

func TestCollector_RecordStage(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordStage("competitive_pair", "pair", "completed", 100*time.Millisecond)
	c.RecordStage("competitive_pair", "pair", "completed", 50*time.Millisecond)
	c.RecordStage("adversary_pair", "pair", "degraded", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stageTotal.WithLabelValues("competitive_pair", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageTotal.WithLabelValues("adversary_pair", "degraded")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
}

func TestCollector_RecordTeamExecution(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordTeamExecution("alpha", "completed", time.Second)
	c.RecordTeamExecution("alpha", "failed", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.teamExecutionsTotal.WithLabelValues("alpha", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.teamExecutionDuration))
}

func TestCollector_CriticOracleAndPruning(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordCriticVerdict("red", true)
	c.RecordCriticVerdict("red", false)
	c.RecordOracleSettlement("competitive_pair", 0.6)
	c.RecordPruning("competitive_pair", 0.05, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.criticVerdictsTotal.WithLabelValues("red", "false")))
	assert.Equal(t, 0.6, testutil.ToFloat64(c.oracleSettledPrice.WithLabelValues("competitive_pair")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pruningDecisions.WithLabelValues("competitive_pair", "true")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_oracle_settled_price")
	assert.Contains(t, names, "test_pruning_novelty")
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordStage("s", "solo", "completed", time.Millisecond)
		c.RecordTeamExecution("t", "completed", time.Millisecond)
		c.RecordCriticVerdict("c", true)
		c.RecordOracleSettlement("s", 1)
		c.RecordPruning("s", 0.5, false)
	})
}
