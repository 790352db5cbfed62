// =============================================================================
// 📦 Crucible 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine:      DefaultEngineConfig(),
		Critic:      DefaultCriticConfig(),
		Pruning:     DefaultPruningConfig(),
		Embedding:   DefaultEmbeddingConfig(),
		Redis:       DefaultRedisConfig(),
		Database:    DefaultDatabaseConfig(),
		Persistence: DefaultPersistenceConfig(),
		Log:         DefaultLogConfig(),
		Metrics:     DefaultMetricsConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TeamTimeout:   5 * time.Minute,
		MaxSteps:      0,
		TeamRateLimit: 0,
		TeamRateBurst: 1,

		BreakerFailureThreshold: 0,
		BreakerRecoveryTimeout:  30 * time.Second,
	}
}

// DefaultCriticConfig 返回默认评审配置
func DefaultCriticConfig() CriticConfig {
	return CriticConfig{
		ApprovalThreshold: 0,
		Reviewer: ReviewerConfig{
			Model:   "gpt-4o-mini",
			Timeout: time.Minute,
		},
	}
}

// DefaultPruningConfig 返回默认剪枝配置
func DefaultPruningConfig() PruningConfig {
	return PruningConfig{
		Enabled:            true,
		Window:             5,
		Epsilon:            1e-6,
		MaxSignatureLength: 2048,
		MinNovelty:         0.1,
		MinGrowth:          0,
		MaxCostGain:        30,
		Registry:           "memory",
		PenaltyTTL:         7 * 24 * time.Hour,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "hashing",
		Dimensions: 256,
		Timeout:    30 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "",
		Password:  "",
		DB:        0,
		PoolSize:  10,
		KeyPrefix: "crucible:",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "",
		Host:            "localhost",
		Port:            5432,
		User:            "crucible",
		Password:        "",
		Name:            "crucible",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultPersistenceConfig 返回默认运行记录存储配置
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Backend:   "memory",
		Retention: 7 * 24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "crucible",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "crucible",
		SampleRate:   0.1,
	}
}
