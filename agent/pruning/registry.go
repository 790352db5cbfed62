package pruning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crucible/internal/cache"
)

// SignatureRegistry 记录出现过的路径签名以及被惩罚的签名
type SignatureRegistry interface {
	// Record 登记签名，返回此前是否已出现过
	Record(ctx context.Context, sig PathSignature) (seen bool, err error)
	// Penalize 标记签名为已剪枝
	Penalize(ctx context.Context, sig PathSignature, reason string) error
	// IsPenalized 查询签名是否已被惩罚
	IsPenalized(ctx context.Context, hash string) (bool, error)
}

// MemoryRegistry 进程内实现
type MemoryRegistry struct {
	mu        sync.RWMutex
	seen      map[string]int
	penalized map[string]string
}

// NewMemoryRegistry 创建内存注册表
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		seen:      make(map[string]int),
		penalized: make(map[string]string),
	}
}

func (r *MemoryRegistry) Record(ctx context.Context, sig PathSignature) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[sig.Hash]++
	return r.seen[sig.Hash] > 1, nil
}

func (r *MemoryRegistry) Penalize(ctx context.Context, sig PathSignature, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.penalized[sig.Hash] = reason
	return nil
}

func (r *MemoryRegistry) IsPenalized(ctx context.Context, hash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.penalized[hash]
	return ok, nil
}

// Reason 返回惩罚原因
func (r *MemoryRegistry) Reason(hash string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reason, ok := r.penalized[hash]
	return reason, ok
}

// RedisRegistry 基于 Redis 的实现，可在多次运行之间共享惩罚记录
type RedisRegistry struct {
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRegistry 创建 Redis 注册表；ttl 为 0 时使用缓存默认过期时间
func NewRedisRegistry(manager *cache.Manager, ttl time.Duration, logger *zap.Logger) *RedisRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRegistry{
		cache:  manager,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "signature_registry")),
	}
}

func (r *RedisRegistry) Record(ctx context.Context, sig PathSignature) (bool, error) {
	created, err := r.cache.SetNX(ctx, r.cache.Key("signature", "seen", sig.Hash), "1", r.ttl)
	if err != nil {
		return false, fmt.Errorf("record signature: %w", err)
	}
	return !created, nil
}

func (r *RedisRegistry) Penalize(ctx context.Context, sig PathSignature, reason string) error {
	if err := r.cache.Set(ctx, r.cache.Key("signature", "penalized", sig.Hash), reason, r.ttl); err != nil {
		return fmt.Errorf("penalize signature: %w", err)
	}
	r.logger.Info("path signature penalized",
		zap.String("hash", sig.Hash),
		zap.Strings("steps", sig.Steps),
		zap.String("reason", reason),
	)
	return nil
}

func (r *RedisRegistry) IsPenalized(ctx context.Context, hash string) (bool, error) {
	n, err := r.cache.Exists(ctx, r.cache.Key("signature", "penalized", hash))
	if err != nil {
		return false, fmt.Errorf("check signature: %w", err)
	}
	return n > 0, nil
}
