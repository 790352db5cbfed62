// =============================================================================
// 📦 Crucible 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("crucible.yaml").
//	    WithEnvPrefix("CRUCIBLE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Crucible 的完整配置结构
type Config struct {
	// Engine 工作流引擎配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Critic 评审配置
	Critic CriticConfig `yaml:"critic" env:"CRITIC"`

	// Pruning 剪枝评估配置
	Pruning PruningConfig `yaml:"pruning" env:"PRUNING"`

	// Embedding 嵌入配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Persistence 运行记录存储配置
	Persistence PersistenceConfig `yaml:"persistence" env:"PERSISTENCE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig 工作流引擎配置
type EngineConfig struct {
	// 阶段表，为空时使用默认五阶段流水线
	Pipeline []StageConfig `yaml:"pipeline"`
	// 单次团队调用超时
	TeamTimeout time.Duration `yaml:"team_timeout" env:"TEAM_TIMEOUT"`
	// 单次运行最多阶段数，0 表示取阶段表长度
	MaxSteps int `yaml:"max_steps" env:"MAX_STEPS"`
	// 团队调用限流（每秒），0 表示不限流
	TeamRateLimit float64 `yaml:"team_rate_limit" env:"TEAM_RATE_LIMIT"`
	// 限流突发量
	TeamRateBurst int `yaml:"team_rate_burst" env:"TEAM_RATE_BURST"`
	// 团队连续失败熔断阈值，0 表示不启用
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" env:"BREAKER_FAILURE_THRESHOLD"`
	// 熔断恢复等待时间
	BreakerRecoveryTimeout time.Duration `yaml:"breaker_recovery_timeout" env:"BREAKER_RECOVERY_TIMEOUT"`
}

// StageConfig 阶段描述
type StageConfig struct {
	ID           string   `yaml:"id"`
	Kind         string   `yaml:"kind"`
	PairMode     string   `yaml:"pair_mode"`
	IsolateFrom  []string `yaml:"isolate_from"`
	Dependencies []string `yaml:"dependencies"`
	PublishAs    string   `yaml:"publish_as"`
}

// CriticConfig 评审配置
type CriticConfig struct {
	// 批准比例阈值，0 表示全部批准
	ApprovalThreshold float64 `yaml:"approval_threshold" env:"APPROVAL_THRESHOLD"`
	// 宪法原则，为空时使用内置原则
	Principles []PrincipleConfig `yaml:"principles"`
	// 红蓝队评审后端，BaseURL 为空时使用占位评审
	Reviewer ReviewerConfig `yaml:"reviewer" env:"REVIEWER"`
}

// PrincipleConfig 宪法原则
type PrincipleConfig struct {
	Name     string  `yaml:"name"`
	Pattern  string  `yaml:"pattern"`
	Fix      string  `yaml:"fix"`
	Severity float64 `yaml:"severity"`
}

// ReviewerConfig OpenAI 兼容的评审后端
type ReviewerConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Model   string        `yaml:"model" env:"MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// PruningConfig 剪枝评估配置
type PruningConfig struct {
	// 是否启用分支监控
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 窗口大小
	Window int `yaml:"window" env:"WINDOW"`
	// 防除零常数
	Epsilon float64 `yaml:"epsilon" env:"EPSILON"`
	// 签名截断长度
	MaxSignatureLength int `yaml:"max_signature_length" env:"MAX_SIGNATURE_LENGTH"`
	// 剪枝阈值
	MinNovelty  float64 `yaml:"min_novelty" env:"MIN_NOVELTY"`
	MinGrowth   float64 `yaml:"min_growth" env:"MIN_GROWTH"`
	MaxCostGain float64 `yaml:"max_cost_gain" env:"MAX_COST_GAIN"`
	// 签名注册表: memory, redis
	Registry string `yaml:"registry" env:"REGISTRY"`
	// 惩罚记录过期时间
	PenaltyTTL time.Duration `yaml:"penalty_ttl" env:"PENALTY_TTL"`
}

// EmbeddingConfig 嵌入配置
type EmbeddingConfig struct {
	// 提供者: hashing, openai
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型
	Model string `yaml:"model" env:"MODEL"`
	// 维度
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Redis 缓存过期时间，0 表示不缓存
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址，为空表示不使用 Redis
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite；为空表示不持久化
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// PersistenceConfig 运行记录存储配置
type PersistenceConfig struct {
	// 后端: none, memory, redis, database
	Backend string `yaml:"backend" env:"BACKEND"`
	// 记录保留时间（redis 后端作为过期时间），0 表示永久
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// /metrics 监听地址，为空时不暴露
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "CRUCIBLE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 引擎
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, "engine.max_steps must not be negative")
	}
	if c.Engine.TeamTimeout <= 0 {
		errs = append(errs, "engine.team_timeout must be positive")
	}
	if c.Engine.TeamRateLimit < 0 {
		errs = append(errs, "engine.team_rate_limit must not be negative")
	}
	for i, s := range c.Engine.Pipeline {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("engine.pipeline[%d].id is required", i))
		}
	}

	// 评审
	if c.Critic.ApprovalThreshold < 0 || c.Critic.ApprovalThreshold > 1 {
		errs = append(errs, "critic.approval_threshold must be between 0 and 1")
	}

	// 剪枝
	if c.Pruning.Window <= 0 {
		errs = append(errs, "pruning.window must be positive")
	}
	if c.Pruning.Epsilon <= 0 {
		errs = append(errs, "pruning.epsilon must be positive")
	}
	switch c.Pruning.Registry {
	case "", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "pruning.registry=redis requires redis.addr")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported pruning.registry: %s", c.Pruning.Registry))
	}

	// 嵌入
	switch c.Embedding.Provider {
	case "", "hashing":
	case "openai":
		if c.Embedding.APIKey == "" {
			errs = append(errs, "embedding.api_key is required for openai")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported embedding.provider: %s", c.Embedding.Provider))
	}
	if c.Embedding.CacheTTL > 0 && c.Redis.Addr == "" {
		errs = append(errs, "embedding.cache_ttl requires redis.addr")
	}

	// 数据库
	switch c.Database.Driver {
	case "", "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database.driver: %s", c.Database.Driver))
	}

	// 运行记录
	switch c.Persistence.Backend {
	case "", "none", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "persistence.backend=redis requires redis.addr")
		}
	case "database":
		if c.Database.Driver == "" {
			errs = append(errs, "persistence.backend=database requires database.driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported persistence.backend: %s", c.Persistence.Backend))
	}
	if c.Persistence.Retention < 0 {
		errs = append(errs, "persistence.retention must not be negative")
	}

	// 日志与遥测
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, "log.format must be json or console")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
