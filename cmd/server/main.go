// Package main provides the entry point for the TradeForge trading backend:
// market data for the Indian index catalog, the strategy backtesting engine,
// paper trading and live forward testing over WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradeforge/trading-backend/internal/api"
	"github.com/tradeforge/trading-backend/internal/backtester"
	"github.com/tradeforge/trading-backend/internal/config"
	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/internal/metrics"
	"github.com/tradeforge/trading-backend/internal/paper"
	"github.com/tradeforge/trading-backend/internal/workers"
)

func main() {
	configPath := pflag.String("config", "", "Path to config file (TOML/YAML)")
	port := pflag.String("port", "", "Override server port")
	dataDir := pflag.String("data-dir", "", "Override data directory")
	provider := pflag.String("provider", "", "Override market data provider (synthetic, upstream)")
	logLevel := pflag.String("log-level", "", "Override log level (debug, info, warn, error)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *provider != "" {
		cfg.Data.Provider = *provider
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := setupLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("Starting TradeForge trading backend",
		zap.String("port", cfg.Server.Port),
		zap.String("dataDir", cfg.Data.Dir),
		zap.String("provider", cfg.Data.Provider),
	)

	store, err := data.NewStore(logger, cfg.Data.Dir)
	if err != nil {
		logger.Fatal("Failed to initialize data store", zap.Error(err))
	}

	var quotes data.Provider
	switch cfg.Data.Provider {
	case "synthetic", "":
		quotes = data.NewSynthetic(logger)
	case "upstream":
		quotes = data.NewUpstream(data.UpstreamConfig{
			BaseURL:    cfg.Data.Upstream.URL,
			APIKey:     cfg.Data.Upstream.APIKey,
			Timeout:    cfg.Data.Upstream.Timeout,
			MaxRetries: cfg.Data.Upstream.MaxRetries,
			RateLimit:  cfg.Data.Upstream.RateLimit,
			Burst:      cfg.Data.Upstream.Burst,
		}, logger)
	default:
		logger.Fatal("Unknown data provider", zap.String("provider", cfg.Data.Provider))
	}
	marketData := data.NewService(quotes, store, cfg.Data.TTL, logger)

	engine := backtester.NewEngine(logger)

	poolConfig := workers.DefaultPoolConfig("backtests")
	if cfg.Workers.NumWorkers > 0 {
		poolConfig = &workers.PoolConfig{
			Name:            "backtests",
			NumWorkers:      cfg.Workers.NumWorkers,
			QueueSize:       cfg.Workers.QueueSize,
			TaskTimeout:     cfg.Workers.TaskTimeout,
			ShutdownTimeout: cfg.Workers.ShutdownTimeout,
		}
	}
	pool := workers.NewPool(logger, poolConfig)
	pool.Start()

	batch := backtester.NewBatchRunner(engine, pool, logger)
	account := paper.NewAccount(decimal.NewFromFloat(cfg.Paper.InitialCash), logger)

	registry := metrics.NewRegistry()
	registry.RegisterSeriesGauge(store.SeriesCount)
	registry.RegisterQueueGauge(func() int64 { return int64(pool.Stats().Queued) })

	server := api.NewServer(cfg, marketData, engine, batch, account, registry, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully",
		zap.String("http", fmt.Sprintf("http://localhost:%s/api", cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://localhost:%s/ws", cfg.Server.Port)),
		zap.String("metrics", fmt.Sprintf("http://localhost:%s/metrics", cfg.Server.Port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}
	if err := pool.Stop(); err != nil {
		logger.Error("Error stopping worker pool", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(cfg config.LoggingConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zcfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: cfg.Development,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
