package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/dto"
	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

type provisioningSeatRepository interface {
	ExistingNumbers(ctx context.Context, exec sqlx.ExtContext, start, end int) ([]int, error)
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, seats []models.Seat) error
	ListActive(ctx context.Context) ([]models.Seat, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SeatStatus) error
	ResetOccupied(ctx context.Context, exec sqlx.ExtContext) (int64, error)
}

type provisioningLedger interface {
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.SeatAssignment) error
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error)
}

// ProvisioningOptions configures the administrative seeding API.
type ProvisioningOptions struct {
	Columns          int
	AllowDestructive bool
	LockTTL          time.Duration
}

// SeatProvisioningService holds the bulk operations that skip per-pair
// invariant checks. They are meant for empty or operator-controlled ledgers
// and run one at a time under the maintenance lock.
type SeatProvisioningService struct {
	tx        txRunner
	seats     provisioningSeatRepository
	ledger    provisioningLedger
	locker    maintenanceLocker
	cache     *CacheService
	metrics   *MetricsService
	opts      ProvisioningOptions
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSeatProvisioningService constructs the administrative service.
func NewSeatProvisioningService(tx txRunner, seats provisioningSeatRepository, ledger provisioningLedger, locker maintenanceLocker, opts ProvisioningOptions, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SeatProvisioningService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Columns <= 0 {
		opts.Columns = 6
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &SeatProvisioningService{
		tx:        tx,
		seats:     seats,
		ledger:    ledger,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		opts:      opts,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProvisionBatch creates seats numbered start..start+count-1. If any number in
// the range exists nothing is written.
func (s *SeatProvisioningService) ProvisionBatch(ctx context.Context, req dto.ProvisionSeatsRequest) ([]models.Seat, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid provision payload")
	}
	if req.StartNumber > models.MaxSeatNumber-req.Count+1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("seat range must end at or below %d", models.MaxSeatNumber))
	}
	release, err := acquireMaintenance(ctx, s.locker, s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	end := req.StartNumber + req.Count - 1
	now := s.now()
	seats := make([]models.Seat, 0, req.Count)
	for n := req.StartNumber; n <= end; n++ {
		seats = append(seats, models.NewSeat(n, s.opts.Columns, now))
	}

	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		taken, err := s.seats.ExistingNumbers(ctx, exec, req.StartNumber, end)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return appErrors.Clone(appErrors.ErrDuplicateSeatNumber, fmt.Sprintf("seat numbers already exist: %s", joinInts(taken)))
		}
		return s.seats.CreateBatch(ctx, exec, seats)
	})
	if err != nil {
		return nil, internalError(err, "failed to provision seats")
	}

	s.cache.Rotate(ctx, seatingStatsCacheKey)
	s.logger.Info("seats provisioned", zap.Int("start", req.StartNumber), zap.Int("count", req.Count))
	return seats, nil
}

// BulkAssign pairs active seats in seat-number order with studentIDs in
// order. On the first failing pair it stops and returns the pairs already
// written together with the error.
func (s *SeatProvisioningService) BulkAssign(ctx context.Context, req dto.BulkAssignRequest) ([]models.SeatAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assign payload")
	}
	release, err := acquireMaintenance(ctx, s.locker, s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.bulkAssign(ctx, req.StudentIDs, "bulk-assign")
}

// Initialize wipes the entire ledger, resets occupied seats and bulk assigns
// studentIDs. It is refused unless destructive operations are enabled.
func (s *SeatProvisioningService) Initialize(ctx context.Context, req dto.BulkAssignRequest) ([]models.SeatAssignment, error) {
	if !s.opts.AllowDestructive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "destructive seating operations are disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid initialize payload")
	}
	release, err := acquireMaintenance(ctx, s.locker, s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	var deleted, reset int64
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		if deleted, err = s.ledger.DeleteAll(ctx, exec); err != nil {
			return err
		}
		reset, err = s.seats.ResetOccupied(ctx, exec)
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to reset seating")
	}
	s.cache.Rotate(ctx, seatingStatsCacheKey)
	s.logger.Warn("seating ledger wiped", zap.Int64("assignments_deleted", deleted), zap.Int64("seats_reset", reset))

	return s.bulkAssign(ctx, req.StudentIDs, "initialize")
}

func (s *SeatProvisioningService) bulkAssign(ctx context.Context, studentIDs []string, actor string) ([]models.SeatAssignment, error) {
	seats, err := s.seats.ListActive(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load seats")
	}

	pairs := len(seats)
	if len(studentIDs) < pairs {
		pairs = len(studentIDs)
	}
	created := make([]models.SeatAssignment, 0, pairs)
	for i := 0; i < pairs; i++ {
		seat := seats[i]
		now := s.now()
		assignment := models.SeatAssignment{
			SeatID:       seat.ID,
			StudentID:    strings.TrimSpace(studentIDs[i]),
			AssignedDate: now,
			Status:       models.AssignmentStatusActive,
			AssignedBy:   models.StringPtr(actor),
			CreatedAt:    now,
		}
		err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
			if err := s.ledger.Create(ctx, exec, &assignment); err != nil {
				return err
			}
			return s.seats.UpdateStatus(ctx, exec, seat.ID, models.SeatStatusOccupied)
		})
		s.metrics.RecordAllocation("bulk_assign", err)
		if err != nil {
			s.cache.Rotate(ctx, seatingStatsCacheKey)
			s.logger.Warn("bulk assign stopped",
				zap.Int("written", len(created)),
				zap.String("seat_id", seat.ID),
				zap.String("student_id", assignment.StudentID),
				zap.Error(err),
			)
			return created, internalError(err, fmt.Sprintf("bulk assign failed at seat %s", seat.ID))
		}
		created = append(created, assignment)
	}

	s.cache.Rotate(ctx, seatingStatsCacheKey)
	s.logger.Info("bulk assign completed", zap.Int("requested", len(studentIDs)), zap.Int("assigned", len(created)))
	return created, nil
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return strings.Join(parts, ", ")
}
