package workflow

import (
	"github.com/BaSui01/crucible/config"
	"github.com/BaSui01/crucible/types"
)

// PipelineFromConfig 将配置中的阶段表转换为阶段描述；为空时返回默认流水线
func PipelineFromConfig(stages []config.StageConfig) ([]StageDescriptor, error) {
	if len(stages) == 0 {
		return DefaultPipeline(), nil
	}

	out := make([]StageDescriptor, 0, len(stages))
	for _, s := range stages {
		kind := StageKind(s.Kind)
		switch kind {
		case StageKindSolo, StageKindPair, StageKindBroadcast:
		default:
			return nil, types.NewConfigurationError("stage %q has unknown kind %q", s.ID, s.Kind).WithStage(s.ID)
		}

		mode := PairMode(s.PairMode)
		if kind == StageKindPair && mode == "" {
			mode = PairModeCollaborative
		}

		out = append(out, StageDescriptor{
			ID:           s.ID,
			Kind:         kind,
			Mode:         mode,
			IsolateFrom:  append([]string(nil), s.IsolateFrom...),
			Dependencies: append([]string(nil), s.Dependencies...),
			PublishAs:    s.PublishAs,
		})
	}
	return out, nil
}

// EngineConfigFrom 提取引擎运行参数
func EngineConfigFrom(cfg config.EngineConfig) EngineConfig {
	out := EngineConfig{
		TeamTimeout: cfg.TeamTimeout,
		MaxSteps:    cfg.MaxSteps,
	}
	if out.MaxSteps < 0 {
		out.MaxSteps = 0
	}
	if out.TeamTimeout <= 0 {
		out.TeamTimeout = DefaultEngineConfig().TeamTimeout
	}
	return out
}
