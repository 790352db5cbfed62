package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/crucible/types"
)

// MemberResult 单个成员的执行结果
type MemberResult struct {
	Team     string        `json:"team"`
	Output   any           `json:"output"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Failed 成员是否失败
func (r MemberResult) Failed() bool {
	return r.Err != nil
}

// JoinN 并发运行全部成员并等待它们结束，结果按成员顺序返回.
// 每个成员有独立的超时；超时或失败只影响该成员，不会丢弃其他成员的结果。
// 成员忽略取消时，JoinN 在超时到达后不再等待它。
func JoinN(ctx context.Context, members []Team, objective string, snapshot map[string]any, timeout time.Duration, logger *zap.Logger) []MemberResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]MemberResult, len(members))

	var g errgroup.Group
	for i, member := range members {
		g.Go(func() error {
			results[i] = runMember(ctx, member, objective, FilterContext(snapshot, nil), timeout)
			if results[i].Err != nil {
				logger.Warn("team failed",
					zap.String("team", member.Name()),
					zap.Duration("duration", results[i].Duration),
					zap.Error(results[i].Err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

type runOutcome struct {
	output any
	err    error
}

func runMember(ctx context.Context, member Team, objective string, snapshot map[string]any, timeout time.Duration) MemberResult {
	name := member.Name()
	start := time.Now()

	runCtx := types.WithTeamName(ctx, name)
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	defer cancel()

	done := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runOutcome{err: fmt.Errorf("team panicked: %v", r)}
			}
		}()
		out, err := member.Run(runCtx, objective, snapshot)
		done <- runOutcome{output: out, err: err}
	}()

	var outcome runOutcome
	select {
	case outcome = <-done:
	case <-runCtx.Done():
		outcome = runOutcome{err: runCtx.Err()}
	}

	result := MemberResult{Team: name, Output: outcome.output, Duration: time.Since(start)}
	if outcome.err != nil {
		result.Output = nil
		if errors.Is(outcome.err, context.DeadlineExceeded) {
			result.Err = types.NewTimeoutError(name, outcome.err)
		} else {
			result.Err = types.NewTeamExecutionError(name, outcome.err)
		}
	}
	return result
}

// degradedOutput 失败成员在 team_outputs 中的占位输出
func degradedOutput(err error) map[string]any {
	return map[string]any{
		"error":    err.Error(),
		"degraded": true,
	}
}
