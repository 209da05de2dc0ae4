package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/resumeforge/orchestrator/internal/cache"
	"github.com/resumeforge/orchestrator/internal/compression"
	"github.com/resumeforge/orchestrator/internal/config"
	"github.com/resumeforge/orchestrator/internal/executors"
	"github.com/resumeforge/orchestrator/internal/httpapi"
	"github.com/resumeforge/orchestrator/internal/llmclient"
	"github.com/resumeforge/orchestrator/internal/retrieval"
	"github.com/resumeforge/orchestrator/internal/streaming"
	"github.com/resumeforge/orchestrator/internal/tools"
	"github.com/resumeforge/orchestrator/internal/tracing"
	"github.com/resumeforge/orchestrator/internal/usage"
	"github.com/resumeforge/orchestrator/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to orchestrator.yaml (defaults to CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Logging.Level))
	logger, err := buildLogger(cfg.Logging.Format, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := tracing.Initialize(cfg.Tracing, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	// Engine options assemble the optional capabilities around the core.
	var opts []workflow.Option

	if cfg.Cache.Enabled {
		store, err := cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer store.Close()
		opts = append(opts, workflow.WithCache(store, cfg.CacheTTL()))
	}

	if cfg.Database.Enabled {
		recorder, err := usage.NewRecorder(cfg.Database.DSN, logger)
		if err != nil {
			logger.Fatal("Failed to connect to usage database", zap.Error(err))
		}
		defer recorder.Close()
		opts = append(opts, workflow.WithUsageRecorder(recorder))
	}

	events := streaming.NewManager(cfg.Streaming.ReplayCapacity)
	opts = append(opts, workflow.WithEvents(events))

	timeout := cfg.CollaboratorTimeout()
	registry := executors.NewRegistry(
		llmclient.New(llmclient.Options{
			BaseURL:           cfg.Collaborators.LLMServiceURL,
			Timeout:           timeout,
			RequestsPerSecond: cfg.Collaborators.LLMRequestsPerSecond,
		}, logger),
		tools.New(cfg.Collaborators.ToolsURL, timeout, logger),
		retrieval.New(cfg.Collaborators.RetrievalURL, timeout, cfg.Collaborators.RetrievalTopK, logger),
		compression.New(cfg.Collaborators.CompressionURL, timeout, logger),
	)
	engine := workflow.NewEngine(registry, logger, opts...)

	mux := http.NewServeMux()
	httpapi.NewWorkflowHandler(engine, logger, cfg.Service.AuthToken).RegisterRoutes(mux)
	httpapi.NewStreamingHandler(events).RegisterRoutes(mux)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: metricsMux,
	}

	// Log level follows config file edits without a restart.
	watcher, err := config.NewWatcher(configFilePath(*configPath), logger, func(next *config.Config) {
		level.SetLevel(parseLevel(next.Logging.Level))
	})
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("API server listening",
			zap.String("service", cfg.Service.Name),
			zap.Int("port", cfg.Service.HTTPPort),
		)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("API server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("Metrics server shutdown failed", zap.Error(err))
	}
}

func buildLogger(format string, level zap.AtomicLevel) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func parseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func configFilePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/orchestrator.yaml"
}
