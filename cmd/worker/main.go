package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
	"github.com/Err-Tools/error-remediation-pipeline/internal/logger"
	"github.com/Err-Tools/error-remediation-pipeline/internal/producer"
	"github.com/Err-Tools/error-remediation-pipeline/internal/remediation"
	"github.com/Err-Tools/error-remediation-pipeline/internal/worker"
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

	log.Info("starting remediation worker",
		zap.String("environment", cfg.Environment),
		zap.Int("concurrency", cfg.Processing.MaxConcurrency))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := worker.NewConsumer(cfg.Kafka)
	if err != nil {
		log.Fatal("failed to create consumer", zap.Error(err))
	}

	prod, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.ProducerFlushMs, log)
	if err != nil {
		log.Fatal("failed to create producer", zap.Error(err))
	}

	analyzer := remediation.NewHTTPAnalyzer(cfg.Remediation.URL, cfg.Remediation.Timeout)

	service := worker.NewService(cfg, consumer, prod, analyzer, log)
	if err := service.Run(ctx); err != nil {
		log.Error("worker error", zap.Error(err))
	}

	// In-flight work has drained; release connections in publish-before-
	// commit order so nothing closes under a pending delivery report.
	prod.Close()
	if err := service.Close(); err != nil {
		log.Error("failed to close consumer", zap.Error(err))
	}
	log.Info("worker stopped cleanly")
}
