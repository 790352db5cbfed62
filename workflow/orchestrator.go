package workflow

import (
	"go.uber.org/zap"
)

// Orchestrator 引擎的日志与广播协作方
type Orchestrator interface {
	Log(message string, data map[string]any)
	Broadcast(message string, data map[string]any)
}

// LogOrchestrator 将通知写入 zap 日志
type LogOrchestrator struct {
	logger *zap.Logger
}

// NewLogOrchestrator 创建基于日志的协作方
func NewLogOrchestrator(logger *zap.Logger) *LogOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogOrchestrator{logger: logger.With(zap.String("component", "orchestrator"))}
}

func (o *LogOrchestrator) Log(message string, data map[string]any) {
	o.logger.Info(message, zap.Any("data", data))
}

func (o *LogOrchestrator) Broadcast(message string, data map[string]any) {
	o.logger.Info("broadcast", zap.String("message", message), zap.Any("data", data))
}
