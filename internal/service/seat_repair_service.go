package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

const (
	maintenanceLockName = "maintenance"
	autoRepairActor     = "auto-repair"
)

type healthChecker interface {
	RunHealthCheck(ctx context.Context) (*models.HealthReport, error)
}

type maintenanceLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

type repairSeatRepository interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SeatStatus) error
}

type repairLedger interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SeatAssignment, error)
	FindActiveBySeat(ctx context.Context, exec sqlx.ExtContext, seatID string) (*models.SeatAssignment, error)
	Release(ctx context.Context, exec sqlx.ExtContext, id string, params models.ReleaseParams) error
}

// SeatRepairService applies corrective writes for auditor findings. Every
// issue is repaired in its own transaction against freshly read state, so a
// stale report never causes a wrong write and one failure never undoes
// another repair.
type SeatRepairService struct {
	auditor healthChecker
	tx      txRunner
	seats   repairSeatRepository
	ledger  repairLedger
	locker  maintenanceLocker
	lockTTL time.Duration
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewSeatRepairService constructs the repair engine. locker may be nil.
func NewSeatRepairService(auditor healthChecker, tx txRunner, seats repairSeatRepository, ledger repairLedger, locker maintenanceLocker, lockTTL time.Duration, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *SeatRepairService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &SeatRepairService{
		auditor: auditor,
		tx:      tx,
		seats:   seats,
		ledger:  ledger,
		locker:  locker,
		lockTTL: lockTTL,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RunAutoRepair audits the store and repairs each finding. DUPLICATE
// findings are escalated rather than resolved. If ctx ends mid-pass the
// summary of the repairs already committed is returned with the error.
func (s *SeatRepairService) RunAutoRepair(ctx context.Context) (*models.RepairSummary, error) {
	release, err := acquireMaintenance(ctx, s.locker, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	started := s.now()
	report, err := s.auditor.RunHealthCheck(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.RepairSummary{
		Report:    *report,
		Results:   make([]models.RepairResult, 0, len(report.Issues)),
		StartedAt: started,
	}
	var interrupted error
	for _, issue := range report.Issues {
		if err := ctx.Err(); err != nil {
			interrupted = appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "auto-repair interrupted")
			break
		}
		result := s.repair(ctx, issue)
		s.metrics.RecordRepair(result)
		switch {
		case result.Action == models.RepairEscalated:
			summary.Escalated++
		case result.Success:
			summary.Repaired++
		default:
			summary.Failed++
			s.logger.Warn("seat repair failed",
				zap.String("seat_id", issue.SeatID),
				zap.String("type", string(issue.Type)),
				zap.String("error", result.Error),
			)
		}
		summary.Results = append(summary.Results, result)
	}
	summary.CompletedAt = s.now()

	if summary.Repaired > 0 {
		s.cache.Rotate(context.WithoutCancel(ctx), seatingStatsCacheKey)
	}
	fields := []zap.Field{
		zap.Int("issues", len(report.Issues)),
		zap.Int("attempted", len(summary.Results)),
		zap.Int("repaired", summary.Repaired),
		zap.Int("failed", summary.Failed),
		zap.Int("escalated", summary.Escalated),
	}
	if interrupted != nil {
		s.logger.Warn("seating auto-repair interrupted", append(fields, zap.Error(interrupted))...)
		return summary, interrupted
	}
	s.logger.Info("seating auto-repair completed", fields...)
	return summary, nil
}

func (s *SeatRepairService) repair(ctx context.Context, issue models.ConsistencyIssue) models.RepairResult {
	result := models.RepairResult{SeatID: issue.SeatID, Type: issue.Type}
	var err error
	switch issue.Type {
	case models.IssueOrphaned:
		result.Action, err = s.releaseOrphan(ctx, issue)
	case models.IssueMismatch:
		result.Action, err = s.rederiveStatus(ctx, issue.SeatID)
	case models.IssueDuplicate:
		result.Action = models.RepairEscalated
		result.Error = "duplicate active assignments require manual resolution"
		return result
	default:
		err = fmt.Errorf("unknown issue type %q", issue.Type)
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

func (s *SeatRepairService) releaseOrphan(ctx context.Context, issue models.ConsistencyIssue) (models.RepairAction, error) {
	action := models.RepairReleaseAssignment
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		seat, err := s.seats.FindByIDForUpdate(ctx, exec, issue.SeatID)
		if err != nil {
			return err
		}
		if seat != nil {
			action = models.RepairSkipped
			return nil
		}
		for _, id := range issue.AssignmentIDs {
			assignment, err := s.ledger.FindByID(ctx, exec, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			if !assignment.Active() {
				continue
			}
			err = s.ledger.Release(ctx, exec, id, models.ReleaseParams{
				ReleasedBy: models.StringPtr(autoRepairActor),
				Notes:      models.StringPtr(issue.Description),
				ReleasedAt: s.now(),
			})
			if err != nil && !errors.Is(err, appErrors.ErrNotActive) {
				return err
			}
		}
		return nil
	})
	return action, err
}

func (s *SeatRepairService) rederiveStatus(ctx context.Context, seatID string) (models.RepairAction, error) {
	action := models.RepairNoop
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		seat, err := s.seats.FindByIDForUpdate(ctx, exec, seatID)
		if err != nil {
			return err
		}
		if seat == nil {
			action = models.RepairSkipped
			return nil
		}
		current, err := s.ledger.FindActiveBySeat(ctx, exec, seatID)
		if err != nil {
			return err
		}

		switch {
		case current != nil && seat.Status != models.SeatStatusOccupied:
			action = models.RepairMarkOccupied
			return s.seats.UpdateStatus(ctx, exec, seatID, models.SeatStatusOccupied)
		case current == nil && seat.Status == models.SeatStatusOccupied:
			action = models.RepairMarkVacant
			return s.seats.UpdateStatus(ctx, exec, seatID, models.SeatStatusVacant)
		}
		return nil
	})
	return action, err
}

func acquireMaintenance(ctx context.Context, locker maintenanceLocker, ttl time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	unlock, err := locker.Acquire(ctx, maintenanceLockName, ttl)
	if err != nil {
		return nil, internalError(err, "failed to acquire maintenance lock")
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = unlock(releaseCtx)
	}, nil
}
