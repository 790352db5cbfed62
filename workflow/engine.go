package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/crucible/agent/critic"
	"github.com/BaSui01/crucible/agent/pruning"
	"github.com/BaSui01/crucible/internal/metrics"
	"github.com/BaSui01/crucible/types"
)

const instrumentationName = "github.com/BaSui01/crucible/workflow"

// EngineConfig 引擎配置
type EngineConfig struct {
	// TeamTimeout 单次团队调用的超时，<= 0 时使用默认值
	TeamTimeout time.Duration `yaml:"team_timeout" json:"team_timeout"`
	// MaxSteps 单次运行最多执行的阶段数，<= 0 时取阶段表长度
	MaxSteps int `yaml:"max_steps" json:"max_steps"`
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TeamTimeout: 5 * time.Minute,
	}
}

// Router 在阶段完成后决定是否覆盖下一阶段；ok 为 false 时沿用流水线顺序.
// 返回 StageDone 结束运行。
type Router func(state *WorkflowState, completed StageDescriptor) (next string, ok bool)

// Engine 按阶段表顺序驱动一次运行
type Engine struct {
	pipeline     []StageDescriptor
	index        map[string]int
	teams        map[string]Binding
	orchestrator Orchestrator
	panel        *critic.Panel
	evaluator    *pruning.Evaluator
	registry     pruning.SignatureRegistry
	router       Router
	status       *StatusBoard
	metrics      *metrics.Collector
	tracer       trace.Tracer
	config       EngineConfig
	logger       *zap.Logger
}

// Option 引擎选项
type Option func(*Engine)

// WithPipeline 替换默认流水线
func WithPipeline(pipeline []StageDescriptor) Option {
	return func(e *Engine) { e.pipeline = pipeline }
}

// WithOrchestrator 设置日志与广播协作方
func WithOrchestrator(o Orchestrator) Option {
	return func(e *Engine) { e.orchestrator = o }
}

// WithPanel 设置对抗阶段使用的评审面板
func WithPanel(p *critic.Panel) Option {
	return func(e *Engine) { e.panel = p }
}

// WithEvaluator 启用分支监控；registry 为 nil 时使用内存注册表
func WithEvaluator(ev *pruning.Evaluator, registry pruning.SignatureRegistry) Option {
	return func(e *Engine) {
		e.evaluator = ev
		e.registry = registry
	}
}

// WithRouter 设置动态路由
func WithRouter(r Router) Option {
	return func(e *Engine) { e.router = r }
}

// WithStatusBoard 注入外部持有的团队状态表
func WithStatusBoard(b *StatusBoard) Option {
	return func(e *Engine) { e.status = b }
}

// WithMetrics 设置指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithConfig 设置引擎配置
func WithConfig(cfg EngineConfig) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine 创建引擎。阶段表与团队注册表不一致时返回 CONFIGURATION 错误。
func NewEngine(teams map[string]Binding, opts ...Option) (*Engine, error) {
	e := &Engine{
		pipeline: DefaultPipeline(),
		teams:    teams,
		config:   DefaultEngineConfig(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_engine"))

	if e.orchestrator == nil {
		e.orchestrator = NewLogOrchestrator(e.logger)
	}
	if e.panel == nil {
		e.panel = critic.DefaultPanel(e.logger)
	}
	if e.status == nil {
		e.status = NewStatusBoard()
	}
	if e.evaluator != nil && e.registry == nil {
		e.registry = pruning.NewMemoryRegistry()
	}
	if e.config.TeamTimeout <= 0 {
		e.config.TeamTimeout = DefaultEngineConfig().TeamTimeout
	}
	if e.config.MaxSteps <= 0 {
		e.config.MaxSteps = len(e.pipeline)
	}

	if err := ValidatePipeline(e.pipeline, e.teams); err != nil {
		return nil, err
	}
	e.index = make(map[string]int, len(e.pipeline))
	for i, s := range e.pipeline {
		e.index[s.ID] = i
	}
	return e, nil
}

// Pipeline 返回阶段表副本
func (e *Engine) Pipeline() []StageDescriptor {
	out := make([]StageDescriptor, len(e.pipeline))
	copy(out, e.pipeline)
	return out
}

// Status 返回团队状态表（只读使用）
func (e *Engine) Status() *StatusBoard {
	return e.status
}

// runState 单次运行内部的累计信息
type runState struct {
	visited   map[string]bool
	executed  map[string]bool
	pruned    map[string]bool
	steps     []string
	tools     []string
	decisions []string
	growth    []float64
	outputs   map[string][]string
}

func newRunState(initialSize int) *runState {
	return &runState{
		visited:  make(map[string]bool),
		executed: make(map[string]bool),
		pruned:   make(map[string]bool),
		growth:   []float64{float64(initialSize)},
		outputs:  make(map[string][]string),
	}
}

// Run 执行一次完整运行。只要运行开始，返回的 state 总是非 nil，
// 即使同时返回了配置错误。
func (e *Engine) Run(ctx context.Context, objective string, initial map[string]any) (*WorkflowState, error) {
	if strings.TrimSpace(objective) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "objective must not be empty")
	}

	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("pipeline.length", len(e.pipeline)),
	))
	defer span.End()

	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("workflow run started", zap.String("objective", objective))

	state := newWorkflowState(runID, objective, initial)
	state.History = NewRunHistory(runID)
	run := newRunState(len(state.Context))

	for _, b := range e.teams {
		for _, m := range b.Members {
			e.status.set(m.Name(), StatusPending)
		}
	}

	var runErr error
	cursor := e.pipeline[0].ID
	for steps := 0; cursor != StageDone; steps++ {
		if steps >= e.config.MaxSteps {
			runErr = types.NewConfigurationError("run exceeded max steps %d", e.config.MaxSteps)
			break
		}

		stage := e.pipeline[e.index[cursor]]
		state.NextStage = stage.ID
		e.executeStage(ctx, stage, state, run, logger)
		run.visited[stage.ID] = true

		next, err := e.nextStage(state, stage, run)
		if err != nil {
			runErr = err
			break
		}
		cursor = next
		state.NextStage = next
	}

	for name, s := range e.status.Snapshot() {
		if s == StatusPending && e.ownsTeam(name) {
			e.status.set(name, StatusSkipped)
		}
	}
	state.TeamStatus = e.status.Snapshot()
	state.History.Complete(state.Degraded, runErr)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Error("workflow run aborted", zap.Error(runErr))
		return state, runErr
	}

	span.SetAttributes(attribute.Bool("run.degraded", state.Degraded))
	logger.Info("workflow run finished",
		zap.Bool("degraded", state.Degraded),
		zap.Int("failures", len(state.Failures)),
	)
	return state, nil
}

func (e *Engine) ownsTeam(name string) bool {
	for _, b := range e.teams {
		for _, m := range b.Members {
			if m.Name() == name {
				return true
			}
		}
	}
	return false
}

// nextStage 默认取流水线中当前阶段之后第一个未访问的阶段
func (e *Engine) nextStage(state *WorkflowState, completed StageDescriptor, run *runState) (string, error) {
	next := StageDone
	for i := e.index[completed.ID] + 1; i < len(e.pipeline); i++ {
		if !run.visited[e.pipeline[i].ID] {
			next = e.pipeline[i].ID
			break
		}
	}
	state.NextStage = next

	if e.router == nil {
		return next, nil
	}
	override, ok := e.router(state, completed)
	if !ok {
		return next, nil
	}
	if override == StageDone {
		return StageDone, nil
	}
	if _, known := e.index[override]; !known {
		return "", types.NewConfigurationError("router selected unknown stage %q", override).WithStage(completed.ID)
	}
	if run.visited[override] {
		return "", types.NewConfigurationError("router selected already completed stage %q", override).WithStage(completed.ID)
	}
	return override, nil
}

func (e *Engine) activeMembers(stage StageDescriptor, run *runState) []Team {
	binding := e.teams[stage.ID]
	members := make([]Team, 0, len(binding.Members))
	for _, m := range binding.Members {
		if !run.pruned[m.Name()] {
			members = append(members, m)
		}
	}
	return members
}

func teamNames(members []Team) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	return names
}

func (e *Engine) signature(steps, tools, decisions []string) pruning.PathSignature {
	if e.evaluator != nil {
		return e.evaluator.Signature(steps, tools, decisions)
	}
	return pruning.ComputeSignature(steps, tools, decisions, pruning.DefaultConfig().MaxSignatureLength)
}

func (e *Engine) executeStage(ctx context.Context, stage StageDescriptor, state *WorkflowState, run *runState, logger *zap.Logger) {
	ctx = types.WithStageID(ctx, stage.ID)
	ctx, span := e.tracer.Start(ctx, "workflow.stage", trace.WithAttributes(
		attribute.String("stage.id", stage.ID),
		attribute.String("stage.kind", string(stage.Kind)),
	))
	defer span.End()
	logger = logger.With(zap.String("stage", stage.ID))

	members := e.activeMembers(stage, run)
	names := teamNames(members)
	exec := state.History.RecordStageStart(stage, names)
	start := time.Now()

	preSig := e.signature(
		append(append([]string{}, run.steps...), stage.ID),
		append(append([]string{}, run.tools...), names...),
		run.decisions,
	)

	if reason := e.skipReason(ctx, stage, run, members, preSig); reason != "" {
		for _, m := range e.teams[stage.ID].Members {
			if !run.pruned[m.Name()] {
				e.status.set(m.Name(), StatusSkipped)
			}
		}
		state.History.RecordStageEnd(exec, StatusSkipped, nil)
		e.metrics.RecordStage(stage.ID, string(stage.Kind), string(StatusSkipped), time.Since(start))
		span.SetAttributes(attribute.String("stage.status", string(StatusSkipped)))
		logger.Info("stage skipped", zap.String("reason", reason))
		e.orchestrator.Log("Skipped step: "+stage.ID, map[string]any{"reason": reason})
		return
	}

	snapshot := snapshotFor(stage, state.Context, state.TeamOutputs)
	for _, name := range names {
		e.status.set(name, StatusRunning)
	}

	var (
		status    Status
		delta     stageDelta
		succeeded []MemberResult
	)
	switch stage.Kind {
	case StageKindSolo:
		status, delta, succeeded = e.runSolo(ctx, stage, state, members, snapshot, logger)
	case StageKindPair:
		status, delta, succeeded = e.runPair(ctx, stage, state, run, members, snapshot, logger)
	case StageKindBroadcast:
		status = e.runBroadcast(state, run)
	}

	// 唯一的上下文写入点
	state.apply(delta)
	run.growth = append(run.growth, float64(len(state.Context)))
	run.executed[stage.ID] = true
	run.steps = append(run.steps, stage.ID)
	run.tools = append(run.tools, names...)
	for _, r := range succeeded {
		run.outputs[r.Team] = append(run.outputs[r.Team], types.Text(r.Output))
	}

	if stage.Kind == StageKindPair && e.evaluator != nil {
		e.monitorBranches(ctx, stage, state, run, succeeded, preSig, logger)
	}

	sig := e.signature(run.steps, run.tools, run.decisions)
	state.Signature = &sig
	if e.registry != nil {
		if seen, err := e.registry.Record(ctx, sig); err != nil {
			logger.Warn("record path signature failed", zap.Error(err))
		} else if seen {
			logger.Debug("path signature seen before", zap.String("hash", sig.Hash))
		}
	}

	state.History.RecordStageEnd(exec, status, nil)
	e.metrics.RecordStage(stage.ID, string(stage.Kind), string(status), time.Since(start))
	span.SetAttributes(attribute.String("stage.status", string(status)))
	if status == StatusDegraded {
		span.SetStatus(codes.Error, "stage degraded")
	}
	e.orchestrator.Log("Completed step: "+stage.ID, map[string]any{"status": string(status)})
}

func (e *Engine) skipReason(ctx context.Context, stage StageDescriptor, run *runState, members []Team, preSig pruning.PathSignature) string {
	if stage.Kind != StageKindBroadcast && len(members) == 0 {
		return "all teams pruned"
	}
	for _, dep := range stage.Dependencies {
		if !run.executed[dep] {
			return fmt.Sprintf("dependency %s did not run", dep)
		}
	}
	if e.registry != nil {
		penalized, err := e.registry.IsPenalized(ctx, preSig.Hash)
		if err != nil {
			e.logger.Warn("check path signature failed", zap.Error(err))
		} else if penalized {
			return "path signature penalized"
		}
	}
	return ""
}

// recordMember 更新团队状态、指标与失败记录
func (e *Engine) recordMember(stage StageDescriptor, state *WorkflowState, r MemberResult) {
	status := StatusCompleted
	if r.Failed() {
		status = StatusFailed
		state.recordFailure(stage.ID, r.Err)
		state.Critics[r.Team] = critic.FailedVerdict(r.Team, r.Err)
	}
	e.status.set(r.Team, status)
	e.metrics.RecordTeamExecution(r.Team, string(status), r.Duration)
}

func (e *Engine) runSolo(ctx context.Context, stage StageDescriptor, state *WorkflowState, members []Team, snapshot map[string]any, logger *zap.Logger) (Status, stageDelta, []MemberResult) {
	r := JoinN(ctx, members[:1], state.Objective, snapshot, e.config.TeamTimeout, logger)[0]
	e.recordMember(stage, state, r)
	if r.Failed() {
		state.TeamOutputs[stage.ID] = degradedOutput(r.Err)
		return StatusDegraded, nil, nil
	}

	state.TeamOutputs[stage.ID] = r.Output
	delta := stageDelta{}
	if m, ok := r.Output.(map[string]any); ok {
		for k, v := range m {
			delta[k] = v
		}
	} else {
		delta[stage.ID] = r.Output
	}
	if stage.PublishAs != "" {
		delta[stage.PublishAs] = r.Output
	}
	return StatusCompleted, delta, []MemberResult{r}
}

func (e *Engine) runPair(ctx context.Context, stage StageDescriptor, state *WorkflowState, run *runState, members []Team, snapshot map[string]any, logger *zap.Logger) (Status, stageDelta, []MemberResult) {
	results := JoinN(ctx, members, state.Objective, snapshot, e.config.TeamTimeout, logger)

	status := StatusCompleted
	outputs := make(map[string]any, len(results))
	succeeded := make([]MemberResult, 0, len(results))
	for _, r := range results {
		e.recordMember(stage, state, r)
		if r.Failed() {
			status = StatusDegraded
			outputs[r.Team] = degradedOutput(r.Err)
			continue
		}
		outputs[r.Team] = r.Output
		succeeded = append(succeeded, r)
	}
	state.TeamOutputs[stage.ID] = outputs

	delta := stageDelta{stage.ID: outputs}
	switch stage.Mode {
	case PairModeCompetitive:
		e.settleOracle(stage, state, run, succeeded, delta)
	case PairModeAdversarial:
		e.reviewAdversaries(ctx, state, run, results, snapshot, delta)
	}
	if stage.PublishAs != "" {
		delta[stage.PublishAs] = outputs
	}
	return status, delta, succeeded
}

func (e *Engine) settleOracle(stage StageDescriptor, state *WorkflowState, run *runState, succeeded []MemberResult, delta stageDelta) {
	candidates := make([]Candidate, len(succeeded))
	for i, r := range succeeded {
		candidates[i] = CandidateFromOutput(r.Team, r.Output)
	}

	result := RunOracle(candidates)
	if result == nil {
		state.TeamOutputs[OracleResultKey] = OracleResult{Bids: []Candidate{}}
		return
	}
	state.TeamOutputs[OracleResultKey] = *result
	delta["oracle_winner"] = result.Winner
	delta["winning_solution"] = result.Content
	run.decisions = append(run.decisions, "oracle_winner="+result.Winner)
	e.metrics.RecordOracleSettlement(stage.ID, result.Price)
}

func (e *Engine) reviewAdversaries(ctx context.Context, state *WorkflowState, run *runState, results []MemberResult, snapshot map[string]any, delta stageDelta) {
	approved := true
	for _, r := range results {
		if r.Failed() {
			approved = false
			continue
		}
		verdict, individual := e.panel.Review(ctx, r.Output, snapshot)
		state.Critics[r.Team] = verdict
		for _, nv := range individual {
			e.metrics.RecordCriticVerdict(nv.Name, nv.Verdict.Approved)
		}
		approved = approved && verdict.Approved
	}
	delta["adversary_approved"] = approved
	run.decisions = append(run.decisions, fmt.Sprintf("adversary_approved=%t", approved))
}

func (e *Engine) runBroadcast(state *WorkflowState, run *runState) Status {
	approvals := make(map[string]bool, len(state.Critics))
	for team, v := range state.Critics {
		approvals[team] = v.Approved
	}
	payload := map[string]any{
		"completed_stages": append([]string{}, run.steps...),
		"approvals":        approvals,
		"degraded":         state.Degraded,
	}
	if winner, ok := state.Context["oracle_winner"]; ok {
		payload["oracle_winner"] = winner
	}
	e.orchestrator.Broadcast("findings", payload)
	return StatusCompleted
}

// monitorBranches 为成对阶段的每个成员打分，满足剪枝条件时标记团队并惩罚路径签名
func (e *Engine) monitorBranches(ctx context.Context, stage StageDescriptor, state *WorkflowState, run *runState, succeeded []MemberResult, preSig pruning.PathSignature, logger *zap.Logger) {
	scores := make(map[string]pruning.Score, len(succeeded))
	for _, r := range succeeded {
		siblings := make([]string, 0, len(succeeded)-1)
		for _, other := range succeeded {
			if other.Team != r.Team {
				siblings = append(siblings, types.Text(other.Output))
			}
		}

		score := e.evaluator.Score(ctx, run.outputs[r.Team], siblings, run.growth, float64(r.Duration.Milliseconds()))
		scores[r.Team] = score
		prune := e.evaluator.ShouldPrune(score)
		e.metrics.RecordPruning(stage.ID, score.Novelty, prune)
		if !prune {
			continue
		}

		run.pruned[r.Team] = true
		e.status.set(r.Team, StatusPruned)
		reason := fmt.Sprintf("team %s: novelty=%.3f growth=%.3f cost_gain=%.3f", r.Team, score.Novelty, score.Growth, score.CostGain)
		if err := e.registry.Penalize(ctx, preSig, reason); err != nil {
			logger.Warn("penalize path signature failed", zap.Error(err))
		}
		logger.Info("branch pruned", zap.String("team", r.Team), zap.String("signature", preSig.Hash))
	}
	state.Pruning[stage.ID] = scores
}
