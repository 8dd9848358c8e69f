//	@title			Community Board Attachments API
//	@version		1.0
//	@description	File attachments for community board posts and user profile images.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/commboard/service/internal/attachment"
	"github.com/commboard/service/internal/config"
	"github.com/commboard/service/internal/db"
	"github.com/commboard/service/internal/logging"
	appMiddleware "github.com/commboard/service/internal/middleware"
	"github.com/commboard/service/internal/post"
	"github.com/commboard/service/internal/presign"
	"github.com/commboard/service/internal/profile"
	"github.com/commboard/service/internal/user"

	_ "github.com/commboard/service/docs/swagger"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	if dotenv {
		logger.Debug().Msg("loaded .env file")
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}

	limits := attachment.Limits{
		MaxFileBytes: cfg.MaxUploadBytes,
		MaxFiles:     cfg.MaxFilesPerUpload,
		Concurrency:  cfg.UploadConcurrency,
	}

	// repository -> service -> handler
	owners := post.NewCachedOwners(post.NewRepository(pool), cfg.OwnerCacheSize, cfg.OwnerCacheTTL)
	guard := attachment.NewGuard(owners)

	issuer := presign.NewClient(cfg.PresignEndpoint, cfg.PresignTimeout, logger)
	transport := presign.NewTransport(cfg.TransferTimeout, logger)
	orch := attachment.NewOrchestrator(guard, attachment.NewKeyGenerator(), issuer, transport, limits, logger)

	fileSvc := attachment.NewService(attachment.NewRepository(pool), orch, guard, issuer, logger)
	fileHandler := attachment.NewHandler(fileSvc, limits, logger)

	profileSvc := profile.NewService(profile.NewRepository(pool), orch, logger)
	profileHandler := profile.NewHandler(profileSvc, limits, logger)

	userHandler := user.NewHandler(user.NewService(user.NewRepository(pool)))

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))

		r.Route("/posts/{postID}/files", func(r chi.Router) {
			r.Post("/", fileHandler.UploadFiles)
			r.Get("/", fileHandler.ListFiles)
		})

		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/download", fileHandler.Download)
			r.Put("/", fileHandler.Replace)
			r.Delete("/", fileHandler.Delete)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", userHandler.GetMe)
			r.Post("/profile-image", profileHandler.SetImage)
			r.Patch("/profile-image", profileHandler.SetImage)
			r.Delete("/profile-image", profileHandler.RemoveImage)
		})
	})

	// Multipart bodies of a full batch can take a while on slow links.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: cfg.TransferTimeout * time.Duration(cfg.MaxFilesPerUpload+1),
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("server stopped")
}
