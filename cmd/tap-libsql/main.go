package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mehmetymw/tap-libsql/internal/config"
	"github.com/mehmetymw/tap-libsql/internal/pipeline"
	"github.com/mehmetymw/tap-libsql/internal/sink/jsonl"
	"github.com/mehmetymw/tap-libsql/internal/sink/kafka"
	"github.com/mehmetymw/tap-libsql/internal/source/sqlite"
	"github.com/mehmetymw/tap-libsql/internal/types"
)

func main() {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logger, _ := zapConfig.Build()

	defer logger.Sync()

	logger.Info("Starting tap-libsql")

	logger.Info("Loading configuration from environment")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config validation failed", zap.Error(err))
	}
	logger.Info("Configuration loaded successfully",
		zap.String("mode", cfg.Mode().String()),
		zap.String("sink_type", cfg.Sink.Type),
		zap.Int("tables", len(cfg.Tables)),
		zap.Int("batch_size", cfg.BatchSize))

	logger.Info("Initializing sink", zap.String("type", cfg.Sink.Type))
	var sink types.Sink
	switch cfg.Sink.Type {
	case "jsonl":
		sink, err = jsonl.New(cfg.Sink.Path, logger)
	case "kafka":
		sink, err = kafka.New(cfg.Sink.Kafka.Brokers, cfg.Sink.Kafka.Topic, logger)
	default:
		err = errors.New("unknown sink type")
	}
	if err != nil {
		logger.Fatal("sink init failed", zap.Error(err))
	}
	defer func() {
		logger.Info("Closing sink")
		sink.Close()
	}()

	mgr := sqlite.NewManager(cfg, logger)
	defer func() {
		logger.Info("Closing connection manager")
		mgr.Close()
	}()

	state := pipeline.NewFileStateStore(cfg.StateDir, logger)
	pl := pipeline.New(cfg, mgr, sink, state, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pl.Run(ctx); err != nil {
		logger.Fatal("extraction run failed", zap.Error(err))
	}

	if mgr.Degraded() {
		logger.Warn("Run completed in degraded mode: local replica was not synced with remote")
	}
	logger.Info("Extraction run completed")
}
