package workflow

import (
	"sync"
)

// Status 团队或阶段状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDegraded  Status = "degraded"
	StatusSkipped   Status = "skipped"
	StatusPruned    Status = "pruned"
)

// StatusBoard 团队状态表。只有引擎写入，其他方只读快照。
type StatusBoard struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewStatusBoard 创建状态表
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{statuses: make(map[string]Status)}
}

func (b *StatusBoard) set(team string, s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[team] = s
}

// Get 查询团队状态
func (b *StatusBoard) Get(team string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.statuses[team]
	return s, ok
}

// Snapshot 返回状态表的副本
func (b *StatusBoard) Snapshot() map[string]Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Status, len(b.statuses))
	for k, v := range b.statuses {
		out[k] = v
	}
	return out
}
