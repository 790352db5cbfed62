package critic

import (
	"context"
	"fmt"
)

// NullCritic is the degraded critic used when no reviewing backend is wired.
// It approves everything with a neutral score instead of failing the stage.
type NullCritic struct {
	name    string
	backend string
}

// NewNullCritic 创建降级评审器，backend 用于说明缺失的后端
func NewNullCritic(name, backend string) *NullCritic {
	if name == "" {
		name = "null"
	}
	if backend == "" {
		backend = "reviewer"
	}
	return &NullCritic{name: name, backend: backend}
}

func (c *NullCritic) Name() string { return c.name }

// Backend returns the description of the missing backend.
func (c *NullCritic) Backend() string { return c.backend }

func (c *NullCritic) Review(context.Context, any, map[string]any) (Verdict, error) {
	return Verdict{
		Approved: true,
		Fixes:    []string{},
		Score:    0.0,
		Notes:    fmt.Sprintf("No %s configured", c.backend),
	}, nil
}
