package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 阶段指标
	stageDuration *prometheus.HistogramVec
	stageTotal    *prometheus.CounterVec

	// 团队指标
	teamExecutionsTotal   *prometheus.CounterVec
	teamExecutionDuration *prometheus.HistogramVec

	// 评审指标
	criticVerdictsTotal *prometheus.CounterVec

	// 拍卖指标
	oracleSettledPrice *prometheus.GaugeVec

	// 剪枝指标
	pruningNovelty   *prometheus.HistogramVec
	pruningDecisions *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器；reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Workflow stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "kind"},
	)

	c.stageTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_total",
			Help:      "Total number of workflow stages by final status",
		},
		[]string{"stage", "status"},
	)

	c.teamExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "team_executions_total",
			Help:      "Total number of team invocations",
		},
		[]string{"team", "status"},
	)

	c.teamExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "team_execution_duration_seconds",
			Help:      "Team invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"team"},
	)

	c.criticVerdictsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critic_verdicts_total",
			Help:      "Total number of critic verdicts",
		},
		[]string{"critic", "approved"},
	)

	c.oracleSettledPrice = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_settled_price",
			Help:      "Last settled second-price bid per stage",
		},
		[]string{"stage"},
	)

	c.pruningNovelty = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pruning_novelty",
			Help:      "Branch novelty scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"stage"},
	)

	c.pruningDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruning_decisions_total",
			Help:      "Total number of pruning decisions",
		},
		[]string{"stage", "pruned"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 阶段与团队
// =============================================================================

// RecordStage 记录阶段执行
func (c *Collector) RecordStage(stage, kind, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage, kind).Observe(duration.Seconds())
	c.stageTotal.WithLabelValues(stage, status).Inc()
}

// RecordTeamExecution 记录团队调用
func (c *Collector) RecordTeamExecution(team, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.teamExecutionsTotal.WithLabelValues(team, status).Inc()
	c.teamExecutionDuration.WithLabelValues(team).Observe(duration.Seconds())
}

// =============================================================================
// ⚖️ 评审、拍卖与剪枝
// =============================================================================

// RecordCriticVerdict 记录评审结论
func (c *Collector) RecordCriticVerdict(critic string, approved bool) {
	if c == nil {
		return
	}
	c.criticVerdictsTotal.WithLabelValues(critic, strconv.FormatBool(approved)).Inc()
}

// RecordOracleSettlement 记录拍卖成交价
func (c *Collector) RecordOracleSettlement(stage string, price float64) {
	if c == nil {
		return
	}
	c.oracleSettledPrice.WithLabelValues(stage).Set(price)
}

// RecordPruning 记录剪枝评估
func (c *Collector) RecordPruning(stage string, novelty float64, pruned bool) {
	if c == nil {
		return
	}
	c.pruningNovelty.WithLabelValues(stage).Observe(novelty)
	c.pruningDecisions.WithLabelValues(stage, strconv.FormatBool(pruned)).Inc()
}
