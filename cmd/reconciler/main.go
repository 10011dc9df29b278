package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
	"github.com/Err-Tools/error-remediation-pipeline/internal/logger"
	"github.com/Err-Tools/error-remediation-pipeline/internal/reconcile"
	"github.com/Err-Tools/error-remediation-pipeline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting result reconciler", zap.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatal("failed to open record store", zap.Error(err))
	}
	repo := store.NewEventRepository(db)

	consumer, err := reconcile.NewConsumer(cfg.Kafka)
	if err != nil {
		log.Fatal("failed to create consumer", zap.Error(err))
	}

	service := reconcile.NewService(cfg, consumer, repo, log)
	if err := service.Run(ctx); err != nil {
		log.Error("reconciler error", zap.Error(err))
	}

	if err := service.Close(); err != nil {
		log.Error("failed to close consumer", zap.Error(err))
	}
	log.Info("reconciler stopped cleanly")
}
