package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
	"github.com/noah-isme/sma-seating-api/pkg/jobs"
)

// Job types handled by SeatingHealthWorker.
const (
	JobSeatingHealthCheck = "seating_health_check"
	JobSeatingAutoRepair  = "seating_auto_repair"
)

type autoRepairer interface {
	RunAutoRepair(ctx context.Context) (*models.RepairSummary, error)
}

// SeatingHealthWorker bridges queue jobs to the auditor and repair engine.
type SeatingHealthWorker struct {
	auditor    healthChecker
	repairer   autoRepairer
	autoRepair bool
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewSeatingHealthWorker constructs a worker. With autoRepair set, a health
// check that finds issues is followed by a repair pass.
func NewSeatingHealthWorker(auditor healthChecker, repairer autoRepairer, autoRepair bool, metrics *MetricsService, logger *zap.Logger) *SeatingHealthWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatingHealthWorker{auditor: auditor, repairer: repairer, autoRepair: autoRepair, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *SeatingHealthWorker) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobSeatingHealthCheck:
		report, err := w.auditor.RunHealthCheck(ctx)
		if err != nil {
			return err
		}
		if !w.autoRepair || len(report.Issues) == 0 || w.repairer == nil {
			return nil
		}
		return w.repair(ctx, job)
	case JobSeatingAutoRepair:
		return w.repair(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (w *SeatingHealthWorker) repair(ctx context.Context, job jobs.Job) error {
	summary, err := w.repairer.RunAutoRepair(ctx)
	if err != nil {
		// Another instance holds the maintenance lock and is doing the same work.
		if errors.Is(err, appErrors.ErrLocked) {
			w.logger.Info("auto-repair skipped, lock held", zap.String("job_id", job.ID))
			return nil
		}
		return err
	}
	if summary.Failed > 0 {
		w.logger.Warn("auto-repair left failures", zap.String("job_id", job.ID), zap.Int("failed", summary.Failed))
	}
	return nil
}

// OnExhausted records a job that used all of its retries.
func (w *SeatingHealthWorker) OnExhausted(job jobs.Job, err error) {
	w.metrics.RecordJobFailure(job.Type)
	w.logger.Error("seating job abandoned", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
}
