package workflow

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Team 接收目标与上下文快照并返回输出的自治单元.
// 输出可以是任意形状：map、字符串、切片、数值或 nil.
type Team interface {
	Name() string
	Run(ctx context.Context, objective string, snapshot map[string]any) (any, error)
}

// TeamFunc 团队函数类型
type TeamFunc func(ctx context.Context, objective string, snapshot map[string]any) (any, error)

// FuncTeam 函数团队
type FuncTeam struct {
	name string
	fn   TeamFunc
}

// NewFuncTeam 创建函数团队
func NewFuncTeam(name string, fn TeamFunc) *FuncTeam {
	return &FuncTeam{name: name, fn: fn}
}

func (t *FuncTeam) Name() string { return t.name }

func (t *FuncTeam) Run(ctx context.Context, objective string, snapshot map[string]any) (any, error) {
	return t.fn(ctx, objective, snapshot)
}

// Binding 阶段绑定的团队；solo 阶段一个成员，pair 阶段两个及以上
type Binding struct {
	Members []Team
}

// Solo 单团队绑定
func Solo(t Team) Binding {
	return Binding{Members: []Team{t}}
}

// Pair 成对绑定；more 用于多于两个候选的竞争阶段
func Pair(a, b Team, more ...Team) Binding {
	return Binding{Members: append([]Team{a, b}, more...)}
}

// Names 成员名称，按注册顺序
func (b Binding) Names() []string {
	names := make([]string, len(b.Members))
	for i, m := range b.Members {
		names[i] = m.Name()
	}
	return names
}

// =============================================================================
// 限流装饰器
// =============================================================================

// RateLimitedTeam 在调用前等待令牌
type RateLimitedTeam struct {
	inner   Team
	limiter *rate.Limiter
}

// NewRateLimitedTeam 创建限流团队；rps <= 0 时不限流
func NewRateLimitedTeam(inner Team, rps float64, burst int) Team {
	if rps <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedTeam{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (t *RateLimitedTeam) Name() string { return t.inner.Name() }

func (t *RateLimitedTeam) Run(ctx context.Context, objective string, snapshot map[string]any) (any, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for team %s: %w", t.inner.Name(), err)
	}
	return t.inner.Run(ctx, objective, snapshot)
}

// RateLimitAll 用同一组参数包装所有绑定；每个团队拥有独立的限流器
func RateLimitAll(teams map[string]Binding, rps float64, burst int) map[string]Binding {
	out := make(map[string]Binding, len(teams))
	for id, b := range teams {
		members := make([]Team, len(b.Members))
		for i, m := range b.Members {
			members[i] = NewRateLimitedTeam(m, rps, burst)
		}
		out[id] = Binding{Members: members}
	}
	return out
}
