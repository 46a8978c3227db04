package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bizhen/bizhen/internal/application/pipeline"
	"github.com/bizhen/bizhen/internal/config"
	"github.com/bizhen/bizhen/internal/prompts"
	"github.com/bizhen/bizhen/internal/textcheck"
	redisevents "github.com/bizhen/bizhen/pkg/adapters/events/redis"
	"github.com/bizhen/bizhen/pkg/adapters/llm"
	"github.com/bizhen/bizhen/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/bizhen/bizhen/pkg/adapters/storage/redis"
	"github.com/bizhen/bizhen/pkg/api/http"
	"github.com/bizhen/bizhen/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting essay pipeline service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	eventBus := redisevents.NewPubSubEventBus(redisClient, logger)

	snapshotStore := redisstorage.NewSnapshotStore(
		redisClient,
		cfg.Redis.SnapshotTTL,
		logger,
	)

	invoker, err := llm.NewClient(&llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.DefaultModel,
		Temperature:    cfg.LLM.DefaultTemperature,
		MaxTokens:      cfg.LLM.DefaultMaxTokens,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxAttempts:    cfg.LLM.MaxAttempts,
		BackoffMin:     cfg.LLM.BackoffMin,
		BackoffMax:     cfg.LLM.BackoffMax,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Load directive templates
	library, err := prompts.Load()
	if err != nil {
		logger.Fatal("failed to load directive templates", zap.Error(err))
	}

	// Initialize the pipeline engine
	engine := pipeline.NewEngine(
		invoker,
		eventBus,
		snapshotStore,
		metricsCollector,
		library,
		logger,
		pipeline.Options{
			Band: textcheck.Band{
				Min:       cfg.Pipeline.TargetMin,
				Max:       cfg.Pipeline.TargetMax,
				Tolerance: cfg.Pipeline.TolerateMax,
			},
			MaxRevisions:  cfg.Pipeline.MaxRevisions,
			LengthRetries: cfg.Pipeline.LengthRetries,
			RunTimeout:    cfg.Timeouts.RunTimeout,
		},
	)

	// Initialize the API server
	httpServer := http.NewServer(&http.Config{
		Port:   cfg.HTTPPort,
		Engine: engine,
		Logger: logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("essay pipeline service started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("model", cfg.LLM.DefaultModel))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Error("pipeline engine shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("essay pipeline service shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
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

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
