package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crucible/internal/cache"
)

// CachedEmbedder 在 Redis 中缓存嵌入结果，键由提供者、维度与文本摘要组成.
type CachedEmbedder struct {
	inner  Embedder
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEmbedder wraps inner with a Redis-backed cache. A zero ttl uses
// the cache manager's default expiry.
func NewCachedEmbedder(inner Embedder, manager *cache.Manager, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  manager,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
}

func (c *CachedEmbedder) Name() string    { return c.inner.Name() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.cache.Key("embedding", c.inner.Name(), strconv.Itoa(c.inner.Dimensions()), hex.EncodeToString(sum[:]))
}

// Embed returns the cached vector when present. Cache failures fall back to
// the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.key(text)

	var vec []float64
	err := c.cache.GetJSON(ctx, key, &vec)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil && !cache.IsCacheMiss(err) {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, key, vec, c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}
