package critic

import (
	"context"
	"fmt"
)

// Verdict is the outcome of one critic review, or of a merged panel.
// Score is a severity: 0 means no issues were observed.
type Verdict struct {
	Approved bool     `json:"approved"`
	Fixes    []string `json:"fixes"`
	Score    float64  `json:"score"`
	Notes    string   `json:"notes"`
}

// NamedVerdict pairs a verdict with the critic that produced it.
type NamedVerdict struct {
	Name    string  `json:"name"`
	Verdict Verdict `json:"verdict"`
}

// Critic reviews a team output against the snapshot the team received.
type Critic interface {
	Name() string
	Review(ctx context.Context, output any, snapshot map[string]any) (Verdict, error)
}

// FailedVerdict builds the failure-flagged verdict recorded for a team whose
// run did not produce an output.
func FailedVerdict(team string, cause error) Verdict {
	notes := fmt.Sprintf("team %s failed", team)
	if cause != nil {
		notes = fmt.Sprintf("team %s failed: %v", team, cause)
	}
	return Verdict{
		Approved: false,
		Fixes:    []string{},
		Score:    1.0,
		Notes:    notes,
	}
}

// CriticFunc adapts a function into a Critic.
type CriticFunc struct {
	name string
	fn   func(ctx context.Context, output any, snapshot map[string]any) (Verdict, error)
}

// NewCriticFunc 创建函数评审器
func NewCriticFunc(name string, fn func(ctx context.Context, output any, snapshot map[string]any) (Verdict, error)) *CriticFunc {
	return &CriticFunc{name: name, fn: fn}
}

func (c *CriticFunc) Name() string { return c.name }

func (c *CriticFunc) Review(ctx context.Context, output any, snapshot map[string]any) (Verdict, error) {
	return c.fn(ctx, output, snapshot)
}
