package workflow

import (
	"sync"
	"time"
)

// StageExecution records the execution of a single stage
type StageExecution struct {
	StageID   string        `json:"stage_id"`
	Kind      StageKind     `json:"kind"`
	Teams     []string      `json:"teams,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// RunHistory records the complete execution path of a run
type RunHistory struct {
	RunID     string            `json:"run_id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Duration  time.Duration     `json:"duration"`
	Status    Status            `json:"status"`
	Stages    []*StageExecution `json:"stages"`
	Error     string            `json:"error,omitempty"`
	mu        sync.RWMutex
}

// NewRunHistory creates a new run history
func NewRunHistory(runID string) *RunHistory {
	return &RunHistory{
		RunID:     runID,
		StartTime: time.Now(),
		Status:    StatusRunning,
		Stages:    make([]*StageExecution, 0),
	}
}

// RecordStageStart records the start of a stage
func (h *RunHistory) RecordStageStart(stage StageDescriptor, teams []string) *StageExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	exec := &StageExecution{
		StageID:   stage.ID,
		Kind:      stage.Kind,
		Teams:     teams,
		StartTime: time.Now(),
		Status:    StatusRunning,
	}
	h.Stages = append(h.Stages, exec)
	return exec
}

// RecordStageEnd records the end of a stage
func (h *RunHistory) RecordStageEnd(exec *StageExecution, status Status, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	exec.EndTime = time.Now()
	exec.Duration = exec.EndTime.Sub(exec.StartTime)
	exec.Status = status
	if err != nil {
		exec.Error = err.Error()
	}
}

// Complete marks the run as finished. A degraded run still completes.
func (h *RunHistory) Complete(degraded bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)

	switch {
	case err != nil:
		h.Status = StatusFailed
		h.Error = err.Error()
	case degraded:
		h.Status = StatusDegraded
	default:
		h.Status = StatusCompleted
	}
}

// GetStages returns a copy of the stage executions
func (h *RunHistory) GetStages() []*StageExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stages := make([]*StageExecution, len(h.Stages))
	copy(stages, h.Stages)
	return stages
}

// GetStage returns the execution record for a specific stage
func (h *RunHistory) GetStage(stageID string) *StageExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.Stages {
		if s.StageID == stageID {
			return s
		}
	}
	return nil
}
