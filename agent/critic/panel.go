package critic

import (
	"context"
	"errors"

	"github.com/BaSui01/crucible/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Panel runs a set of critics over one output and merges their verdicts.
type Panel struct {
	critics []Critic
	gate    *Gate
	logger  *zap.Logger
}

// NewPanel 创建评审面板
func NewPanel(gate *Gate, logger *zap.Logger, critics ...Critic) *Panel {
	if gate == nil {
		gate = NewGate(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{
		critics: critics,
		gate:    gate,
		logger:  logger.With(zap.String("component", "critic_panel")),
	}
}

// Critics returns the configured critics.
func (p *Panel) Critics() []Critic {
	out := make([]Critic, len(p.critics))
	copy(out, p.critics)
	return out
}

// Review runs every critic concurrently and merges the verdicts in the
// order the critics were registered. A critic that errors contributes a
// disapproving verdict instead of failing the panel.
func (p *Panel) Review(ctx context.Context, output any, snapshot map[string]any) (Verdict, []NamedVerdict) {
	individual := make([]NamedVerdict, len(p.critics))

	var g errgroup.Group
	for i, c := range p.critics {
		g.Go(func() error {
			v, err := c.Review(ctx, output, snapshot)
			if err != nil {
				p.logger.Warn("critic review failed",
					zap.String("critic", c.Name()),
					zap.Error(err),
				)
				v = reviewErrorVerdict(err)
			}
			if v.Fixes == nil {
				v.Fixes = []string{}
			}
			individual[i] = NamedVerdict{Name: c.Name(), Verdict: v}
			return nil
		})
	}
	_ = g.Wait()

	return p.gate.Merge(individual), individual
}

func reviewErrorVerdict(err error) Verdict {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Verdict{Approved: false, Fixes: []string{}, Score: 1.0, Notes: "review interrupted: " + err.Error()}
	}
	if types.IsErrorCode(err, types.ErrCriticUnavailable) {
		return Verdict{Approved: true, Fixes: []string{}, Notes: err.Error()}
	}
	return Verdict{Approved: false, Fixes: []string{}, Score: 1.0, Notes: "review failed: " + err.Error()}
}

// DefaultPanel 本地宪法评审加上红蓝队占位评审，合并门要求全部批准
func DefaultPanel(logger *zap.Logger) *Panel {
	return NewPanel(NewGate(0), logger,
		NewConstitutionalCritic(DefaultPrinciples()),
		NewRedTeamCritic(nil, logger),
		NewBlueTeamCritic(nil, logger),
	)
}
