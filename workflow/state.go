package workflow

import (
	"github.com/BaSui01/crucible/agent/critic"
	"github.com/BaSui01/crucible/agent/pruning"
	"github.com/BaSui01/crucible/types"
)

// Failure 一次被降级处理的团队失败
type Failure struct {
	Stage string          `json:"stage"`
	Team  string          `json:"team"`
	Code  types.ErrorCode `json:"code"`
	Error string          `json:"error"`
}

// WorkflowState 一次运行的全部状态。引擎逐阶段修改，运行结束后交给调用方。
type WorkflowState struct {
	RunID     string `json:"run_id"`
	Objective string `json:"objective"`

	// Context 共享上下文，只由引擎在每个阶段结束时统一写入
	Context map[string]any `json:"context"`

	// TeamOutputs 按阶段记录输出，只追加不删除
	TeamOutputs map[string]any `json:"team_outputs"`

	// Critics 按团队名记录评审结论
	Critics map[string]critic.Verdict `json:"critics"`

	// NextStage 下一个待执行阶段，运行结束时为 DONE
	NextStage string `json:"next_stage"`

	Degraded bool      `json:"degraded"`
	Failures []Failure `json:"failures,omitempty"`

	// Pruning 分支评估分数 [stage][team]
	Pruning map[string]map[string]pruning.Score `json:"pruning,omitempty"`

	// Signature 已完成路径的签名
	Signature *pruning.PathSignature `json:"signature,omitempty"`

	// TeamStatus 运行结束时的团队状态快照
	TeamStatus map[string]Status `json:"team_status"`

	History *RunHistory `json:"history,omitempty"`
}

func newWorkflowState(runID, objective string, initial map[string]any) *WorkflowState {
	return &WorkflowState{
		RunID:       runID,
		Objective:   objective,
		Context:     FilterContext(initial, nil),
		TeamOutputs: make(map[string]any),
		Critics:     make(map[string]critic.Verdict),
		Pruning:     make(map[string]map[string]pruning.Score),
		TeamStatus:  make(map[string]Status),
	}
}

// Terminal 是否已没有待执行阶段
func (s *WorkflowState) Terminal() bool {
	return s.NextStage == StageDone
}

func (s *WorkflowState) recordFailure(stage string, err error) {
	s.Degraded = true
	f := Failure{Stage: stage, Code: types.GetErrorCode(err), Error: err.Error()}
	if e, ok := types.AsError(err); ok {
		f.Team = e.Team
	}
	s.Failures = append(s.Failures, f)
}

// stageDelta 阶段要写回共享上下文的键值
type stageDelta map[string]any

func (s *WorkflowState) apply(delta stageDelta) {
	for k, v := range delta {
		s.Context[k] = v
	}
}
