// Command presigner is a development issuing service. It signs upload and download URLs
// against MinIO or S3 so the api can run without the production issuing service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commboard/service/internal/config"
	"github.com/commboard/service/internal/logging"
	appMiddleware "github.com/commboard/service/internal/middleware"
	"github.com/commboard/service/internal/presigner"
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.New(ctx, storageOptions(cfg), logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage init failed")
	}

	h := presigner.NewHandler(store, cfg.PresignTTL, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/files", h.IssuePut)
	r.Post("/files/download", h.IssueGet)

	srv := &http.Server{
		Addr:         ":" + cfg.PresignerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.PresignerPort).Str("backend", cfg.StorageBackend).Msg("presigner listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("presigner stopped")
}

func storageOptions(cfg *config.Config) storage.Options {
	return storage.Options{
		Backend:    cfg.StorageBackend,
		Endpoint:   cfg.StorageEndpoint,
		Region:     cfg.StorageRegion,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		UseSSL:     cfg.StorageUseSSL,
		PublicBase: cfg.StoragePublicBase,
	}
}
