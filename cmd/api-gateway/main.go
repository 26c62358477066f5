package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-seating-api/api/swagger"
	"github.com/noah-isme/sma-seating-api/internal/app"
	"github.com/noah-isme/sma-seating-api/internal/handler"
	"github.com/noah-isme/sma-seating-api/internal/middleware"
	"github.com/noah-isme/sma-seating-api/internal/service"
	"github.com/noah-isme/sma-seating-api/pkg/config"
	"github.com/noah-isme/sma-seating-api/pkg/jobs"
	"github.com/noah-isme/sma-seating-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-seating-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-seating-api/pkg/middleware/requestid"
)

// @title SMA Seating API
// @version 1.0.0
// @description Seat allocation with a consistency auditor and auto-repair
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seating, err := app.New(ctx, cfg, logr, app.Options{ApplySchema: cfg.Env != config.EnvProduction})
	if err != nil {
		logr.Fatal("failed to initialise seating", zap.Error(err))
	}
	defer func() {
		if err := seating.Close(); err != nil {
			logr.Warn("close seating resources", zap.Error(err))
		}
	}()

	queue := seating.HealthQueue()
	queue.Start(ctx)
	defer queue.Stop()

	scheduler := jobs.NewScheduler(queue, service.JobSeatingHealthCheck, cfg.Seating.HealthInterval, nil, logr)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(seating.Metrics))

	registerRoutes(r, cfg, routeDeps{
		tokens:  seating.Tokens,
		logger:  logr,
		seats:   handler.NewSeatHandler(seating.Seats),
		seating: handler.NewSeatingHandler(seating.Allocation),
		admin:   handler.NewSeatingAdminHandler(seating.Auditor, seating.Repairer, seating.Provisioner),
		ops: handler.NewMetricsHandler(seating.Metrics, map[string]handler.PingFunc{
			"postgres": seating.PingDB,
			"redis":    seating.PingRedis,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
