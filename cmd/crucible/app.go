package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/crucible/agent/critic"
	"github.com/BaSui01/crucible/agent/persistence"
	"github.com/BaSui01/crucible/agent/pruning"
	"github.com/BaSui01/crucible/config"
	"github.com/BaSui01/crucible/internal/cache"
	"github.com/BaSui01/crucible/internal/database"
	"github.com/BaSui01/crucible/internal/metrics"
	"github.com/BaSui01/crucible/internal/server"
	"github.com/BaSui01/crucible/internal/telemetry"
	"github.com/BaSui01/crucible/llm/chat"
	"github.com/BaSui01/crucible/llm/embedding"
	"github.com/BaSui01/crucible/workflow"
)

// app 持有一次进程内所有共享连接与引擎
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	telemetry *telemetry.Providers
	cache     *cache.Manager
	pool      *database.PoolManager
	store     persistence.RunStore
	server    *server.Manager
	engine    *workflow.Engine
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		a.telemetry = providers
	}

	if cfg.Redis.Addr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			cacheCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.KeyPrefix != "" {
			cacheCfg.KeyPrefix = cfg.Redis.KeyPrefix
		}
		if a.cache, err = cache.NewManager(cacheCfg, logger); err != nil {
			return nil, err
		}
	}

	if cfg.Database.Driver != "" {
		if a.pool, err = database.Open(cfg.Database, logger); err != nil {
			return nil, err
		}
	}

	a.store, err = persistence.NewRunStore(ctx, cfg.Persistence, persistence.Backends{
		Cache: a.cache,
		Pool:  a.pool,
	}, logger)
	if err != nil {
		return nil, err
	}

	if a.engine, err = a.buildEngine(); err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr != "" {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.ListenAddr
		a.server = server.NewManager(server.NewHandler(a.registry, a.healthChecks()...), srvCfg, logger)
		if err := a.server.Start(); err != nil {
			return nil, err
		}
	}

	ready = true
	return a, nil
}

func (a *app) buildEngine() (*workflow.Engine, error) {
	cfg := a.cfg

	pipeline, err := workflow.PipelineFromConfig(cfg.Engine.Pipeline)
	if err != nil {
		return nil, err
	}

	panel, err := buildPanel(cfg.Critic, a.logger)
	if err != nil {
		return nil, err
	}

	teams := demoTeams(pipeline)
	teams = workflow.RateLimitAll(teams, cfg.Engine.TeamRateLimit, cfg.Engine.TeamRateBurst)
	teams = workflow.BreakAll(teams, workflow.BreakerConfig{
		FailureThreshold: cfg.Engine.BreakerFailureThreshold,
		RecoveryTimeout:  cfg.Engine.BreakerRecoveryTimeout,
	}, a.logger)

	opts := []workflow.Option{
		workflow.WithPipeline(pipeline),
		workflow.WithPanel(panel),
		workflow.WithConfig(workflow.EngineConfigFrom(cfg.Engine)),
		workflow.WithLogger(a.logger),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, workflow.WithMetrics(metrics.NewCollector(cfg.Metrics.Namespace, a.registry, a.logger)))
	}

	if cfg.Pruning.Enabled {
		evaluator, registry, err := a.buildPruning()
		if err != nil {
			return nil, err
		}
		opts = append(opts, workflow.WithEvaluator(evaluator, registry))
	}

	return workflow.NewEngine(teams, opts...)
}

func (a *app) buildPruning() (*pruning.Evaluator, pruning.SignatureRegistry, error) {
	cfg := a.cfg

	embedder, err := embedding.New(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Embedding.CacheTTL > 0 && a.cache != nil {
		embedder = embedding.NewCachedEmbedder(embedder, a.cache, cfg.Embedding.CacheTTL, a.logger)
	}

	evaluator := pruning.NewEvaluator(embedder, pruning.Config{
		Window:             cfg.Pruning.Window,
		Epsilon:            cfg.Pruning.Epsilon,
		MaxSignatureLength: cfg.Pruning.MaxSignatureLength,
		MinNovelty:         cfg.Pruning.MinNovelty,
		MinGrowth:          cfg.Pruning.MinGrowth,
		MaxCostGain:        cfg.Pruning.MaxCostGain,
	}, a.logger)

	var registry pruning.SignatureRegistry = pruning.NewMemoryRegistry()
	if cfg.Pruning.Registry == "redis" && a.cache != nil {
		registry = pruning.NewRedisRegistry(a.cache, cfg.Pruning.PenaltyTTL, a.logger)
	}
	return evaluator, registry, nil
}

// buildPanel 宪法评审使用配置中的原则；配置了 reviewer.base_url 时红蓝队走 LLM 评审
func buildPanel(cfg config.CriticConfig, logger *zap.Logger) (*critic.Panel, error) {
	principles := critic.DefaultPrinciples()
	if len(cfg.Principles) > 0 {
		specs := make([]critic.PrincipleSpec, len(cfg.Principles))
		for i, p := range cfg.Principles {
			specs[i] = critic.PrincipleSpec{Name: p.Name, Pattern: p.Pattern, Fix: p.Fix, Severity: p.Severity}
		}
		var err error
		if principles, err = critic.CompilePrinciples(specs); err != nil {
			return nil, err
		}
	}

	var reviewer critic.Reviewer
	if cfg.Reviewer.BaseURL != "" {
		client, err := chat.NewClient(chat.Config{
			BaseURL: cfg.Reviewer.BaseURL,
			APIKey:  cfg.Reviewer.APIKey,
			Model:   cfg.Reviewer.Model,
			Timeout: cfg.Reviewer.Timeout,
		})
		if err != nil {
			return nil, err
		}
		reviewerCfg := critic.DefaultLLMReviewerConfig()
		if cfg.Reviewer.Timeout > 0 {
			reviewerCfg.Timeout = cfg.Reviewer.Timeout
		}
		llm, err := critic.NewLLMReviewer(client, reviewerCfg, logger)
		if err != nil {
			return nil, err
		}
		reviewer = llm
	}

	return critic.NewPanel(critic.NewGate(cfg.ApprovalThreshold), logger,
		critic.NewConstitutionalCritic(principles),
		critic.NewRedTeamCritic(reviewer, logger),
		critic.NewBlueTeamCritic(reviewer, logger),
	), nil
}

func (a *app) healthChecks() []server.HealthCheck {
	var checks []server.HealthCheck
	if a.cache != nil {
		checks = append(checks, server.HealthCheck{Name: "redis", Check: a.cache.Ping})
	}
	if a.pool != nil {
		checks = append(checks, server.HealthCheck{Name: "database", Check: a.pool.Ping})
	}
	if a.store != nil {
		checks = append(checks, server.HealthCheck{Name: "run_store", Check: a.store.Ping})
	}
	return checks
}

// Run 执行一次运行，保存记录并把最终状态写到 out
func (a *app) Run(ctx context.Context, objective string, out io.Writer) error {
	state, err := a.engine.Run(ctx, objective, map[string]any{"requested_at": time.Now().UTC().Format(time.RFC3339)})
	if state == nil {
		return err
	}
	if err != nil {
		a.logger.Error("run ended with a configuration error", zap.Error(err))
	}

	if a.store != nil {
		if saveErr := a.save(ctx, state); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(state); encErr != nil {
		return errors.Join(err, fmt.Errorf("failed to write state: %w", encErr))
	}
	return err
}

func (a *app) save(ctx context.Context, state *workflow.WorkflowState) error {
	rec, err := persistence.NewRunRecord(state)
	if err != nil {
		return err
	}
	if err := a.store.SaveRun(ctx, rec); err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}

	if a.cfg.Persistence.Retention > 0 {
		removed, err := a.store.Cleanup(ctx, a.cfg.Persistence.Retention)
		if err != nil {
			a.logger.Warn("run cleanup failed", zap.Error(err))
		} else if removed > 0 {
			a.logger.Info("expired runs removed", zap.Int("count", removed))
		}
	}

	a.logger.Info("run saved",
		zap.String("run_id", rec.ID),
		zap.String("status", rec.Status),
		zap.Bool("degraded", rec.Degraded),
	)
	return nil
}

// runSummary runs 命令输出的一行
type runSummary struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Degraded     bool      `json:"degraded"`
	FailureCount int       `json:"failure_count"`
	Winner       string    `json:"winner,omitempty"`
	Objective    string    `json:"objective"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListRuns 以 JSON 行输出已保存的运行
func (a *app) ListRuns(ctx context.Context, status string, limit int, out io.Writer) error {
	if a.store == nil {
		return fmt.Errorf("persistence is disabled (persistence.backend=%q)", a.cfg.Persistence.Backend)
	}

	filter := persistence.RunFilter{Limit: limit}
	if status != "" {
		filter.Status = []string{status}
	}
	records, err := a.store.ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for _, r := range records {
		if err := enc.Encode(runSummary{
			ID:           r.ID,
			Status:       r.Status,
			Degraded:     r.Degraded,
			FailureCount: r.FailureCount,
			Winner:       r.Winner,
			Objective:    r.Objective,
			CreatedAt:    r.CreatedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Close 按创建的逆序释放资源
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.pool != nil {
		_ = a.pool.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
}
