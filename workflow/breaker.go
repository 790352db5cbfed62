package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crucible/types"
)

// CircuitState 熔断器状态
type CircuitState int

const (
	// CircuitClosed 正常状态，允许调用
	CircuitClosed CircuitState = iota
	// CircuitOpen 熔断状态，直接拒绝
	CircuitOpen
	// CircuitHalfOpen 半开状态，允许一次探测
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// FailureThreshold 连续失败次数阈值，0 表示不启用
	FailureThreshold int `json:"failure_threshold"`
	// RecoveryTimeout 熔断后等待恢复的时间
	RecoveryTimeout time.Duration `json:"recovery_timeout"`
}

// BreakerTeam 跨运行记录团队连续失败；熔断期间调用立即失败，
// 由引擎按普通团队失败降级处理。
type BreakerTeam struct {
	inner  Team
	config BreakerConfig
	logger *zap.Logger

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreakerTeam 创建带熔断的团队；阈值 <= 0 时原样返回
func NewBreakerTeam(inner Team, config BreakerConfig, logger *zap.Logger) Team {
	if config.FailureThreshold <= 0 {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	return &BreakerTeam{
		inner:  inner,
		config: config,
		logger: logger.With(zap.String("component", "team_breaker"), zap.String("team", inner.Name())),
	}
}

func (t *BreakerTeam) Name() string { return t.inner.Name() }

// State 当前熔断状态
func (t *BreakerTeam) State() CircuitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *BreakerTeam) Run(ctx context.Context, objective string, snapshot map[string]any) (any, error) {
	if err := t.allow(); err != nil {
		return nil, err
	}
	out, err := t.inner.Run(ctx, objective, snapshot)
	t.record(err)
	return out, err
}

func (t *BreakerTeam) allow() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case CircuitOpen:
		if time.Since(t.lastFailure) < t.config.RecoveryTimeout {
			return types.NewError(types.ErrTeamExecution, fmt.Sprintf(
				"circuit open after %d consecutive failures, retry after %v",
				t.failures, t.config.RecoveryTimeout-time.Since(t.lastFailure),
			)).WithTeam(t.inner.Name())
		}
		t.transitionTo(CircuitHalfOpen, "recovery timeout elapsed")
		t.probing = true
		return nil
	case CircuitHalfOpen:
		if t.probing {
			return types.NewError(types.ErrTeamExecution, "circuit half-open, probe in flight").WithTeam(t.inner.Name())
		}
		t.probing = true
		return nil
	default:
		return nil
	}
}

func (t *BreakerTeam) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probing = false

	if err == nil {
		t.failures = 0
		if t.state != CircuitClosed {
			t.transitionTo(CircuitClosed, "probe succeeded")
		}
		return
	}

	t.failures++
	t.lastFailure = time.Now()
	switch {
	case t.state == CircuitHalfOpen:
		t.transitionTo(CircuitOpen, "probe failed")
	case t.state == CircuitClosed && t.failures >= t.config.FailureThreshold:
		t.transitionTo(CircuitOpen, fmt.Sprintf("%d consecutive failures", t.failures))
	}
}

// transitionTo 必须在锁内调用
func (t *BreakerTeam) transitionTo(next CircuitState, reason string) {
	t.logger.Info("circuit breaker state change",
		zap.String("old_state", t.state.String()),
		zap.String("new_state", next.String()),
		zap.String("reason", reason),
		zap.Int("failures", t.failures))
	t.state = next
}

// BreakAll 为所有绑定加上熔断；每个团队拥有独立的熔断器
func BreakAll(teams map[string]Binding, config BreakerConfig, logger *zap.Logger) map[string]Binding {
	out := make(map[string]Binding, len(teams))
	for id, b := range teams {
		members := make([]Team, len(b.Members))
		for i, m := range b.Members {
			members[i] = NewBreakerTeam(m, config, logger)
		}
		out[id] = Binding{Members: members}
	}
	return out
}
