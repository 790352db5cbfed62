package workflow

import (
	"github.com/BaSui01/crucible/types"
)

// StageKind 阶段类型
type StageKind string

const (
	StageKindSolo      StageKind = "solo"
	StageKindPair      StageKind = "pair"
	StageKindBroadcast StageKind = "broadcast"
)

// PairMode 决定成对阶段汇合之后的处理方式
type PairMode string

const (
	// PairModeCompetitive 汇合后运行密封拍卖
	PairModeCompetitive PairMode = "competitive"
	// PairModeAdversarial 汇合后交给评审面板
	PairModeAdversarial PairMode = "adversarial"
	// PairModeCollaborative 只汇合
	PairModeCollaborative PairMode = "collaborative"
)

// 默认流水线的阶段标识
const (
	StageCompetitivePair      = "competitive_pair"
	StageAdversaryPair        = "adversary_pair"
	StageInnovatorsDisruptors = "innovators_disruptors"
	StageBroadcastFindings    = "broadcast_findings"
	StageSecurityQuality      = "security_quality"

	// StageDone 终止标记
	StageDone = "DONE"

	// OracleResultKey 拍卖结果在 team_outputs 中的键
	OracleResultKey = "oracle_result"
)

// StageDescriptor 描述流水线中的一个阶段
type StageDescriptor struct {
	ID   string    `json:"id" yaml:"id"`
	Kind StageKind `json:"kind" yaml:"kind"`
	Mode PairMode  `json:"pair_mode,omitempty" yaml:"pair_mode,omitempty"`

	// IsolateFrom 列出的阶段，其输出中的键在本阶段的上下文快照中被剔除
	IsolateFrom []string `json:"isolate_from,omitempty" yaml:"isolate_from,omitempty"`

	// Dependencies 必须在本阶段之前完成的阶段
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// PublishAs 非空时，阶段输出同时写入上下文中的该键
	PublishAs string `json:"publish_as,omitempty" yaml:"publish_as,omitempty"`
}

// DefaultPipeline 返回默认的五阶段流水线
func DefaultPipeline() []StageDescriptor {
	return []StageDescriptor{
		{ID: StageCompetitivePair, Kind: StageKindPair, Mode: PairModeCompetitive},
		{ID: StageAdversaryPair, Kind: StageKindPair, Mode: PairModeAdversarial},
		{
			ID:          StageInnovatorsDisruptors,
			Kind:        StageKindPair,
			Mode:        PairModeCollaborative,
			IsolateFrom: []string{StageSecurityQuality},
		},
		{ID: StageBroadcastFindings, Kind: StageKindBroadcast},
		{ID: StageSecurityQuality, Kind: StageKindSolo, PublishAs: "reinforced_strategy"},
	}
}

// ValidatePipeline 检查阶段表与团队注册表是否一致
func ValidatePipeline(pipeline []StageDescriptor, teams map[string]Binding) error {
	if len(pipeline) == 0 {
		return types.NewConfigurationError("pipeline is empty")
	}

	seen := make(map[string]bool, len(pipeline))
	for _, s := range pipeline {
		if s.ID == "" || s.ID == StageDone || s.ID == OracleResultKey {
			return types.NewConfigurationError("invalid stage id %q", s.ID)
		}
		if seen[s.ID] {
			return types.NewConfigurationError("duplicate stage %q", s.ID)
		}
		for _, dep := range s.Dependencies {
			if !seen[dep] {
				return types.NewConfigurationError("stage %q depends on %q which does not precede it", s.ID, dep)
			}
		}

		binding, registered := teams[s.ID]
		switch s.Kind {
		case StageKindSolo:
			if !registered || len(binding.Members) != 1 {
				return types.NewConfigurationError("solo stage %q requires exactly one registered team", s.ID).WithStage(s.ID)
			}
		case StageKindPair:
			if !registered || len(binding.Members) < 2 {
				return types.NewConfigurationError("pair stage %q requires at least two registered teams", s.ID).WithStage(s.ID)
			}
			switch s.Mode {
			case PairModeCompetitive, PairModeAdversarial, PairModeCollaborative:
			default:
				return types.NewConfigurationError("pair stage %q has unknown mode %q", s.ID, s.Mode).WithStage(s.ID)
			}
		case StageKindBroadcast:
		default:
			return types.NewConfigurationError("stage %q has unknown kind %q", s.ID, s.Kind).WithStage(s.ID)
		}

		if registered {
			names := make(map[string]bool, len(binding.Members))
			for _, m := range binding.Members {
				if m == nil || m.Name() == "" {
					return types.NewConfigurationError("stage %q has an unnamed team", s.ID).WithStage(s.ID)
				}
				if names[m.Name()] {
					return types.NewConfigurationError("stage %q registers team %q twice", s.ID, m.Name()).WithStage(s.ID)
				}
				names[m.Name()] = true
			}
		}
		seen[s.ID] = true
	}

	for id := range teams {
		if !seen[id] {
			return types.NewConfigurationError("teams registered for unknown stage %q", id).WithStage(id)
		}
	}
	return nil
}
