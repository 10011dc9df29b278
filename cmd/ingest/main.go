package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/config"
	"github.com/Err-Tools/error-remediation-pipeline/internal/httpapi"
	"github.com/Err-Tools/error-remediation-pipeline/internal/ingest"
	"github.com/Err-Tools/error-remediation-pipeline/internal/logger"
	"github.com/Err-Tools/error-remediation-pipeline/internal/producer"
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

	log.Info("starting ingestion service",
		zap.String("environment", cfg.Environment),
		zap.String("address", cfg.Server.Address))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatal("failed to open record store", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal("failed to migrate record store", zap.Error(err))
	}
	repo := store.NewEventRepository(db)

	prod, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.ProducerFlushMs, log)
	if err != nil {
		log.Fatal("failed to create producer", zap.Error(err))
	}
	defer prod.Close()

	service := ingest.NewService(prod, repo, cfg.Kafka.InboundTopic, log)
	handler := httpapi.NewHandler(service, repo, log)
	router := httpapi.NewRouter(handler, cfg.Server.AdminAPIKey, log)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down ingestion service")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
}
