package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/leowmjw/go-chronology/pkg/config"
	"github.com/leowmjw/go-chronology/pkg/http"
	"github.com/leowmjw/go-chronology/pkg/temporal"
)

func main() {
	var (
		configPath   = flag.String("config", "", "YAML config file")
		httpAddr     = flag.String("http-addr", "", "HTTP server address")
		temporalAddr = flag.String("temporal-addr", "", "Temporal server address")
		namespace    = flag.String("namespace", "", "Temporal namespace")
		taskQueue    = flag.String("task-queue", "", "Temporal task queue")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		storageKind  = flag.String("storage", "", "Series storage (memory, sql)")
		sqlPath      = flag.String("sql-path", "", "SQLite database file for sql storage")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override the file
	overrides := map[string]*string{
		"http-addr":     &cfg.HTTPAddr,
		"temporal-addr": &cfg.TemporalAddr,
		"namespace":     &cfg.Namespace,
		"task-queue":    &cfg.TaskQueue,
		"log-level":     &cfg.LogLevel,
		"storage":       &cfg.Storage,
		"sql-path":      &cfg.SQLPath,
	}
	values := map[string]*string{
		"http-addr":     httpAddr,
		"temporal-addr": temporalAddr,
		"namespace":     namespace,
		"task-queue":    taskQueue,
		"log-level":     logLevel,
		"storage":       storageKind,
		"sql-path":      sqlPath,
	}
	flag.Visit(func(f *flag.Flag) {
		if dst, ok := overrides[f.Name]; ok {
			*dst = *values[f.Name]
		}
	})
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("Starting chronology service",
		"http_addr", cfg.HTTPAddr,
		"temporal_addr", cfg.TemporalAddr,
		"namespace", cfg.Namespace,
		"task_queue", cfg.TaskQueue,
		"storage", cfg.Storage,
	)

	// Create Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddr,
		Namespace: cfg.Namespace,
		Logger:    log.NewStructuredLogger(logger),
	})
	if err != nil {
		logger.Error("Failed to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	var storage temporal.StorageService
	switch cfg.Storage {
	case config.StorageSQL:
		sqlStorage, err := temporal.NewSQLStorage(logger, cfg.SQLPath)
		if err != nil {
			logger.Error("Failed to open SQL storage", "path", cfg.SQLPath, "error", err)
			os.Exit(1)
		}
		defer sqlStorage.Close()
		storage = sqlStorage
	default:
		storage = temporal.NewMemoryStorage(logger)
	}

	// Create and start Temporal worker
	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{})
	temporal.RegisterWorkflows(w)
	temporal.NewActivities(logger, storage).Register(w)

	if err := w.Start(); err != nil {
		logger.Error("Failed to start Temporal worker", "error", err)
		os.Exit(1)
	}
	defer w.Stop()
	logger.Info("Started Temporal worker", "task_queue", cfg.TaskQueue)

	server := http.NewServer(logger, temporalClient, storage, cfg.HTTPAddr, cfg.TaskQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server failed", "error", err)
		return
	}

	logger.Info("Chronology service stopped")
}
