package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/crucible/config"
	"github.com/BaSui01/crucible/internal/cache"
	"github.com/BaSui01/crucible/internal/database"
)

// Backends carries the shared connections a store may be built on
type Backends struct {
	Cache *cache.Manager
	Pool  *database.PoolManager
}

// NewRunStore creates a RunStore based on the configuration.
// Backend "" or "none" returns a nil store and no error.
func NewRunStore(ctx context.Context, cfg config.PersistenceConfig, backends Backends, logger *zap.Logger) (RunStore, error) {
	switch StoreType(cfg.Backend) {
	case "", StoreTypeNone:
		return nil, nil
	case StoreTypeMemory:
		return NewMemoryRunStore(), nil
	case StoreTypeRedis:
		if backends.Cache == nil {
			return nil, fmt.Errorf("redis run store requires a cache connection")
		}
		return NewRedisRunStore(backends.Cache, cfg.Retention, logger), nil
	case StoreTypeDatabase:
		if backends.Pool == nil {
			return nil, fmt.Errorf("database run store requires a database pool")
		}
		return NewGormRunStore(ctx, backends.Pool, logger)
	default:
		return nil, fmt.Errorf("unsupported run store type: %s", cfg.Backend)
	}
}
