// Command reclaimer deletes the objects of tombstoned files once their grace period ends.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commboard/service/internal/config"
	"github.com/commboard/service/internal/db"
	"github.com/commboard/service/internal/logging"
	"github.com/commboard/service/internal/reclaim"
	"github.com/commboard/service/internal/storage"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	store, err := storage.New(ctx, storage.Options{
		Backend:    cfg.StorageBackend,
		Endpoint:   cfg.StorageEndpoint,
		Region:     cfg.StorageRegion,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		UseSSL:     cfg.StorageUseSSL,
		PublicBase: cfg.StoragePublicBase,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage init failed")
	}

	r := reclaim.New(reclaim.NewRepository(pool), store, reclaim.Options{
		Interval:  cfg.ReclaimInterval,
		Grace:     cfg.ReclaimGrace,
		BatchSize: cfg.ReclaimBatchSize,
	}, logger)
	r.Start(ctx)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down reclaimer...")

	r.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
