// Package app wires the seating stores, services and background workers.
// Both the HTTP gateway and seatctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/repository"
	"github.com/noah-isme/sma-seating-api/internal/service"
	"github.com/noah-isme/sma-seating-api/pkg/cache"
	"github.com/noah-isme/sma-seating-api/pkg/config"
	"github.com/noah-isme/sma-seating-api/pkg/database"
	"github.com/noah-isme/sma-seating-api/pkg/events"
	"github.com/noah-isme/sma-seating-api/pkg/jobs"
)

// Options tweak what New sets up.
type Options struct {
	// ApplySchema runs the embedded migrations before anything else.
	ApplySchema bool
	// Metrics is shared with the HTTP layer. A fresh registry is created when nil.
	Metrics *service.MetricsService
}

// App is the wired seating subsystem.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *service.MetricsService

	Publisher   events.Publisher
	Cache       *service.CacheService
	Tokens      *service.TokenVerifier
	Seats       *service.SeatService
	Allocation  *service.SeatAllocationService
	Auditor     *service.SeatConsistencyService
	Repairer    *service.SeatRepairService
	Provisioner *service.SeatProvisioningService
	Worker      *service.SeatingHealthWorker
}

// New connects to Postgres and Redis and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = service.NewMetricsService()
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache and distributed locks", zap.Error(err))
		redisClient = nil
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     redisClient,
		Metrics:   metrics,
		Publisher: events.NewPublisher(cfg.Events, logger),
		Tokens:    service.NewTokenVerifier(cfg.JWT),
	}
	a.build()
	return a, nil
}

func (a *App) build() {
	cfg := a.Config
	validate := validator.New()

	seatRepo := repository.NewSeatRepository(a.DB)
	ledger := repository.NewSeatAssignmentRepository(a.DB)
	locks := repository.NewLockRepository(a.Redis)
	tx := repository.NewTxManager(a.DB, cfg.Database.TxTimeout).WithObserver(a.Metrics.ObserveTx)

	a.Cache = service.NewCacheService(repository.NewCacheRepository(a.Redis), a.Metrics, cfg.Seating.StatsCacheTTL, a.Logger, a.Redis != nil)

	a.Seats = service.NewSeatService(seatRepo, cfg.Seating.Columns, a.Cache, validate, a.Logger)

	a.Allocation = service.NewSeatAllocationService(tx, seatRepo, ledger, validate, a.Logger).
		WithPublisher(a.Publisher).
		WithCache(a.Cache, cfg.Seating.StatsCacheTTL).
		WithMetrics(a.Metrics)
	if cfg.Seating.VerifyStudents {
		a.Allocation.WithStudentDirectory(repository.NewStudentDirectory(a.DB))
	}

	a.Auditor = service.NewSeatConsistencyService(seatRepo, ledger, cfg.Seating.DegradedThresholdPct, a.Metrics, a.Logger)
	a.Repairer = service.NewSeatRepairService(a.Auditor, tx, seatRepo, ledger, locks, cfg.Seating.LockTTL, a.Cache, a.Metrics, a.Logger)
	a.Provisioner = service.NewSeatProvisioningService(tx, seatRepo, ledger, locks, service.ProvisioningOptions{
		Columns:          cfg.Seating.Columns,
		AllowDestructive: cfg.Seating.AllowDestructive,
		LockTTL:          cfg.Seating.LockTTL,
	}, a.Cache, a.Metrics, validate, a.Logger)
	a.Worker = service.NewSeatingHealthWorker(a.Auditor, a.Repairer, cfg.Seating.AutoRepair, a.Metrics, a.Logger)
}

// HealthQueue builds the background queue that runs audits and repairs.
func (a *App) HealthQueue() *jobs.Queue {
	return jobs.NewQueue("seating-health", a.Worker.Handle, jobs.QueueConfig{
		Workers:     a.Config.Seating.HealthWorkers,
		MaxRetries:  a.Config.Seating.HealthJobRetries,
		Logger:      a.Logger,
		OnExhausted: a.Worker.OnExhausted,
	})
}

// PingDB checks Postgres connectivity.
func (a *App) PingDB(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

// PingRedis checks Redis connectivity. A disabled Redis is reported healthy.
func (a *App) PingRedis(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Ping(ctx).Err()
}

// Close releases every connection.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
