package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lpr-service/internal/auth"
	"lpr-service/internal/capture"
	"lpr-service/internal/config"
	"lpr-service/internal/db"
	"lpr-service/internal/detection"
	httphandler "lpr-service/internal/http"
	"lpr-service/internal/http/middleware"
	"lpr-service/internal/inference"
	"lpr-service/internal/logger"
	"lpr-service/internal/metrics"
	"lpr-service/internal/registry"
	"lpr-service/internal/repository"
	"lpr-service/internal/service"
	"lpr-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	loc, err := cfg.Location()
	if err != nil {
		appLogger.Fatal().Err(err).Msg("invalid timezone")
	}

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}
	dbPing := func(ctx context.Context) error { return db.HealthCheck(ctx, database) }

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	plateRegistry := registry.New()
	appMetrics := metrics.New(plateRegistry.Len)
	inferenceClient := inference.NewClient(cfg.Inference)

	deps := service.Deps{
		Registry:   plateRegistry,
		Normalizer: detection.NewNormalizer(detection.WithLocation(loc)),
		Inference:  inferenceClient,
		Store:      repository.NewPlateRepository(database),
		DBPing:     dbPing,
		Metrics:    appMetrics,
		Location:   loc,
	}

	// R2 archive is optional
	r2Client, err := storage.NewR2Client(cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Warn().Msg("R2 storage not configured, upload archiving disabled")
	case err != nil:
		appLogger.Fatal().Err(err).Msg("failed to initialize R2 client")
	default:
		deps.Archive = r2Client
	}

	plateService := service.NewPlateService(deps, appLogger)

	if cfg.Camera.HTTPHost != "" {
		source, err := capture.NewHTTPSnapshotSource(cfg.Camera.HTTPHost, cfg.Camera.SnapshotPath, cfg.Camera.RTSPURL, cfg.Inference.Timeout)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("invalid camera configuration")
		}
		session := capture.NewSession(source, inferenceClient, plateService, cfg.Live.Interval, appMetrics, appLogger)
		plateService.AttachLive(appCtx, session)

		appLogger.Info().
			Str("camera_host", cfg.Camera.HTTPHost).
			Str("camera_model", cfg.Camera.Model).
			Msg("live capture available")

		if cfg.Live.AutoStart {
			if err := plateService.StartLive(); err != nil {
				appLogger.Error().Err(err).Msg("failed to start live capture")
			}
		}
	} else {
		appLogger.Warn().Msg("camera not configured, live capture disabled")
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(plateService, appLogger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Environment:    cfg.Environment,
		Readiness:      dbPing,
		MetricsHandler: appMetrics.Handler(),
		AuthMiddleware: []gin.HandlerFunc{
			middleware.Auth(tokenParser),
			middleware.RequireOperator(),
		},
	}, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting LPR service")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	plateService.StopLive()
	cancelApp()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}
