package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/crucible/workflow"
)

// RunStore persists the final state of workflow runs.
type RunStore interface {
	Store

	// SaveRun persists a run record (create or update)
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns retrieves runs matching the filter, newest first
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)

	// DeleteRun removes a run from the store
	DeleteRun(ctx context.Context, runID string) error

	// Cleanup removes runs last updated before now-olderThan
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// RunRecord is the stored form of a WorkflowState. The indexed columns are
// copied out of the state; State holds the full JSON document.
type RunRecord struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Objective    string    `gorm:"type:text" json:"objective"`
	Status       string    `gorm:"size:32;index" json:"status"`
	Degraded     bool      `json:"degraded"`
	FailureCount int       `json:"failure_count"`
	Winner       string    `gorm:"size:128" json:"winner,omitempty"`
	State        string    `gorm:"type:text" json:"state"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 表名
func (RunRecord) TableName() string {
	return "crucible_runs"
}

// NewRunRecord 从运行状态构建记录
func NewRunRecord(state *workflow.WorkflowState) (*RunRecord, error) {
	if state == nil || state.RunID == "" {
		return nil, ErrInvalidInput
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run state: %w", err)
	}

	rec := &RunRecord{
		ID:           state.RunID,
		Objective:    state.Objective,
		Status:       runStatus(state),
		Degraded:     state.Degraded,
		FailureCount: len(state.Failures),
		State:        string(data),
	}
	if winner, ok := state.Context["oracle_winner"].(string); ok {
		rec.Winner = winner
	}
	if state.History != nil {
		rec.CreatedAt = state.History.StartTime
	}
	return rec, nil
}

func runStatus(state *workflow.WorkflowState) string {
	if state.History != nil {
		return string(state.History.Status)
	}
	if state.Degraded {
		return string(workflow.StatusDegraded)
	}
	return string(workflow.StatusCompleted)
}

// Decode 还原运行状态。team_outputs 等自由形状的值还原为通用 JSON 类型。
func (r *RunRecord) Decode() (*workflow.WorkflowState, error) {
	var state workflow.WorkflowState
	if err := json.Unmarshal([]byte(r.State), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", r.ID, err)
	}
	return &state, nil
}

func (r *RunRecord) clone() *RunRecord {
	c := *r
	return &c
}

// touch sets the timestamps before a save
func (r *RunRecord) touch() {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// RunFilter defines criteria for listing runs
type RunFilter struct {
	// Status filters by run status (any of)
	Status []string `json:"status,omitempty"`

	// Degraded filters by the degraded flag when set
	Degraded *bool `json:"degraded,omitempty"`

	// CreatedAfter filters runs started after this time
	CreatedAfter *time.Time `json:"created_after,omitempty"`

	// Limit is the maximum number of results, 0 means no limit
	Limit int `json:"limit,omitempty"`

	// Offset is the number of results to skip
	Offset int `json:"offset,omitempty"`
}

func (f RunFilter) matches(r *RunRecord) bool {
	if len(f.Status) > 0 {
		found := false
		for _, s := range f.Status {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Degraded != nil && r.Degraded != *f.Degraded {
		return false
	}
	if f.CreatedAfter != nil && !r.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	return true
}

// page applies offset and limit to an already filtered, ordered slice
func (f RunFilter) page(records []*RunRecord) []*RunRecord {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*RunRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}
