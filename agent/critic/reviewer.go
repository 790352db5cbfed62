package critic

import (
	"context"
	"fmt"

	"github.com/BaSui01/crucible/types"
	"go.uber.org/zap"
)

// Role 评审视角
type Role string

const (
	RoleRedTeam  Role = "red_team"  // 攻击者视角：寻找弱点
	RoleBlueTeam Role = "blue_team" // 防守者视角：评估防护是否充分
)

// ReviewRequest is what a role critic hands to its backend.
type ReviewRequest struct {
	Role     Role
	Output   string
	Snapshot map[string]any
}

// Reviewer is a reviewing backend (for example an LLM) that a role critic
// delegates to. A backend that is not configured returns a CRITIC_UNAVAILABLE
// error; the panel then treats the critic as abstaining.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (*Verdict, error)
}

// roleCritic is the shared implementation of the red and blue team critics.
type roleCritic struct {
	name    string
	role    Role
	backend Reviewer
	logger  *zap.Logger
}

func (c *roleCritic) Name() string { return c.name }

func (c *roleCritic) Review(ctx context.Context, output any, snapshot map[string]any) (Verdict, error) {
	v, err := c.backend.Review(ctx, ReviewRequest{
		Role:     c.role,
		Output:   types.Text(output),
		Snapshot: snapshot,
	})
	if types.IsErrorCode(err, types.ErrCriticUnavailable) {
		c.logger.Debug("review backend unavailable", zap.String("critic", c.name), zap.Error(err))
		return Verdict{}, err
	}
	if err != nil {
		return Verdict{}, types.NewError(types.ErrUpstreamError, fmt.Sprintf("%s review failed", c.name)).
			WithCause(err)
	}
	if v == nil {
		return Verdict{}, types.NewError(types.ErrUpstreamError, fmt.Sprintf("%s backend returned no verdict", c.name))
	}
	out := *v
	if out.Fixes == nil {
		out.Fixes = []string{}
	}
	c.logger.Debug("role review completed",
		zap.String("critic", c.name),
		zap.Bool("approved", out.Approved),
		zap.Float64("score", out.Score),
	)
	return out, nil
}

// RedTeamCritic reviews outputs from an attacker's point of view.
type RedTeamCritic struct{ roleCritic }

// BlueTeamCritic reviews outputs from a defender's point of view.
type BlueTeamCritic struct{ roleCritic }

// NewRedTeamCritic 创建红队评审器；backend 为 nil 时返回 NullCritic
func NewRedTeamCritic(backend Reviewer, logger *zap.Logger) Critic {
	if backend == nil {
		return NewNullCritic("red_team", "red team reviewer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedTeamCritic{roleCritic{
		name:    "red_team",
		role:    RoleRedTeam,
		backend: backend,
		logger:  logger.With(zap.String("component", "red_team_critic")),
	}}
}

// NewBlueTeamCritic 创建蓝队评审器；backend 为 nil 时返回 NullCritic
func NewBlueTeamCritic(backend Reviewer, logger *zap.Logger) Critic {
	if backend == nil {
		return NewNullCritic("blue_team", "blue team reviewer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlueTeamCritic{roleCritic{
		name:    "blue_team",
		role:    RoleBlueTeam,
		backend: backend,
		logger:  logger.With(zap.String("component", "blue_team_critic")),
	}}
}

// ReviewerFunc adapts a function into a Reviewer.
type ReviewerFunc func(ctx context.Context, req ReviewRequest) (*Verdict, error)

func (f ReviewerFunc) Review(ctx context.Context, req ReviewRequest) (*Verdict, error) {
	return f(ctx, req)
}
