// =============================================================================
// Crucible 主入口
// =============================================================================
// 运行一次多团队工作流并输出最终状态 JSON
//
// 使用方法:
//
//	crucible run --objective "ship a safe release"     # 运行默认流水线
//	crucible run --config crucible.yaml --objective x  # 指定配置文件
//	crucible run --wait                                # 运行后保持 /metrics 可抓取
//	crucible runs --limit 10                           # 列出已保存的运行
//	crucible version                                   # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/crucible/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "runs":
		os.Exit(runsCommand(os.Args[2:]))
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ run 命令
// =============================================================================

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	objective := fs.String("objective", "design a resilient release plan", "Objective handed to every team")
	wait := fs.Bool("wait", false, "Keep the metrics endpoint up until SIGINT/SIGTERM")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Crucible",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx, *objective, os.Stdout); err != nil {
		logger.Error("run failed", zap.Error(err))
		return 1
	}

	if *wait && app.server != nil {
		app.server.WaitForShutdown(ctx)
	}
	return 0
}

// =============================================================================
// 📜 runs 命令
// =============================================================================

func runsCommand(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	status := fs.String("status", "", "Only list runs with this status")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return 1
	}
	defer app.Close()

	if err := app.ListRuns(ctx, *status, *limit, os.Stdout); err != nil {
		logger.Error("list runs failed", zap.Error(err))
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.NewLoader().WithConfigPath(path).Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("Crucible %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Crucible - multi-team workflow engine

Usage:
  crucible <command> [options]

Commands:
  run       Run the configured pipeline once and print the final state
  runs      List persisted runs
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>      Path to configuration file (YAML)
  --objective <text>   Objective handed to every team
  --wait               Keep /metrics and /healthz up until interrupted

Options for 'runs':
  --config <path>      Path to configuration file (YAML)
  --limit <n>          Maximum number of runs to list
  --status <status>    Filter by run status

Examples:
  crucible run --objective "harden the login flow"
  CRUCIBLE_PERSISTENCE_BACKEND=database CRUCIBLE_DATABASE_DRIVER=sqlite \
    CRUCIBLE_DATABASE_NAME=crucible.db crucible run
  crucible runs --status degraded`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          "json",
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
