package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/dto"
	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
	"github.com/noah-isme/sma-seating-api/pkg/events"
	"github.com/noah-isme/sma-seating-api/pkg/middleware/requestid"
)

const (
	seatingStatsCacheKey = "seating:stats"
	eventPublishTimeout  = 5 * time.Second
)

// txRunner executes fn atomically. Implementations roll back when fn errors.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type allocationSeatRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SeatStatus) error
	CountByStatus(ctx context.Context) ([]models.SeatStatusCount, error)
}

type assignmentLedger interface {
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.SeatAssignment) error
	FindActiveBySeat(ctx context.Context, exec sqlx.ExtContext, seatID string) (*models.SeatAssignment, error)
	FindActiveByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.SeatAssignment, error)
	FindActiveBySeatAndStudent(ctx context.Context, exec sqlx.ExtContext, seatID, studentID string) (*models.SeatAssignment, error)
	Release(ctx context.Context, exec sqlx.ExtContext, id string, params models.ReleaseParams) error
	HistoryBySeat(ctx context.Context, seatID string) ([]models.SeatAssignment, error)
	HistoryByStudent(ctx context.Context, studentID string) ([]models.SeatAssignment, error)
	List(ctx context.Context, filter models.SeatAssignmentFilter) ([]models.SeatAssignment, int, error)
	CountByStatus(ctx context.Context) (map[models.AssignmentStatus]int, error)
}

type studentDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// SeatAllocationService is the only writer of occupancy state for
// incremental traffic. Each assign or unassign is one transaction that
// locks the seat row before reading the ledger.
type SeatAllocationService struct {
	tx        txRunner
	seats     allocationSeatRepository
	ledger    assignmentLedger
	students  studentDirectory
	publisher events.Publisher
	cache     *CacheService
	metrics   *MetricsService
	statsTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSeatAllocationService constructs the allocation service.
func NewSeatAllocationService(tx txRunner, seats allocationSeatRepository, ledger assignmentLedger, validate *validator.Validate, logger *zap.Logger) *SeatAllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatAllocationService{
		tx:        tx,
		seats:     seats,
		ledger:    ledger,
		publisher: events.NopPublisher{},
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithStudentDirectory enables the student existence check on assign.
func (s *SeatAllocationService) WithStudentDirectory(dir studentDirectory) *SeatAllocationService {
	s.students = dir
	return s
}

// WithPublisher sets the allocation event sink.
func (s *SeatAllocationService) WithPublisher(p events.Publisher) *SeatAllocationService {
	if p != nil {
		s.publisher = p
	}
	return s
}

// WithCache enables stats caching with ttl.
func (s *SeatAllocationService) WithCache(cache *CacheService, ttl time.Duration) *SeatAllocationService {
	s.cache = cache
	s.statsTTL = ttl
	return s
}

// WithMetrics records allocation outcomes.
func (s *SeatAllocationService) WithMetrics(metrics *MetricsService) *SeatAllocationService {
	s.metrics = metrics
	return s
}

// Assign binds a student to a vacant, active seat. Preconditions are checked
// inside the transaction in this order: seat exists and is active, seat has no
// active binding, student has no active binding, seat is vacant.
func (s *SeatAllocationService) Assign(ctx context.Context, req dto.AssignSeatRequest) (*models.SeatAssignment, error) {
	req.SeatID = strings.TrimSpace(req.SeatID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign payload")
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	var created *models.SeatAssignment
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		seat, err := s.seats.FindByIDForUpdate(ctx, exec, req.SeatID)
		if err != nil {
			return err
		}
		if seat == nil || !seat.IsActive {
			return appErrors.Clone(appErrors.ErrSeatUnavailable, fmt.Sprintf("seat %s is not available", req.SeatID))
		}

		current, err := s.ledger.FindActiveBySeat(ctx, exec, req.SeatID)
		if err != nil {
			return err
		}
		if current != nil {
			return appErrors.Clone(appErrors.ErrSeatAlreadyAssigned, fmt.Sprintf("seat %s already has an active assignment", req.SeatID))
		}

		held, err := s.ledger.FindActiveByStudent(ctx, exec, req.StudentID)
		if err != nil {
			return err
		}
		if held != nil {
			return appErrors.Clone(appErrors.ErrStudentAlreadyAssigned, fmt.Sprintf("student %s already holds seat %s", req.StudentID, held.SeatID))
		}

		if seat.Status != models.SeatStatusVacant {
			return appErrors.Clone(appErrors.ErrSeatUnavailable, fmt.Sprintf("seat %s is %s", req.SeatID, seat.Status))
		}

		now := s.now()
		assignment := &models.SeatAssignment{
			SeatID:       req.SeatID,
			StudentID:    req.StudentID,
			AssignedDate: now,
			Status:       models.AssignmentStatusActive,
			AssignedBy:   models.StringPtr(req.AssignedBy),
			Notes:        models.StringPtr(req.Notes),
			CreatedAt:    now,
		}
		if err := s.ledger.Create(ctx, exec, assignment); err != nil {
			return err
		}
		if err := s.seats.UpdateStatus(ctx, exec, req.SeatID, models.SeatStatusOccupied); err != nil {
			return fmt.Errorf("mark seat occupied: %w", err)
		}
		created = assignment
		return nil
	})
	s.metrics.RecordAllocation("assign", err)
	if err != nil {
		return nil, s.fail(ctx, "assign", err, "failed to assign seat", zap.String("seat_id", req.SeatID), zap.String("student_id", req.StudentID))
	}

	s.logger.Info("seat assigned",
		zap.String("seat_id", created.SeatID),
		zap.String("student_id", created.StudentID),
		zap.String("assignment_id", created.ID),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
	s.afterCommit(ctx, models.EventSeatAssigned, created, req.AssignedBy)
	return created, nil
}

// Unassign releases the active binding for exactly this seat and student.
// A seat row that disappeared out of band is tolerated: the binding is still
// closed and the inconsistency is logged.
func (s *SeatAllocationService) Unassign(ctx context.Context, req dto.UnassignSeatRequest) (*models.SeatAssignment, error) {
	req.SeatID = strings.TrimSpace(req.SeatID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unassign payload")
	}

	var released *models.SeatAssignment
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		seat, err := s.seats.FindByIDForUpdate(ctx, exec, req.SeatID)
		if err != nil {
			return err
		}

		assignment, err := s.ledger.FindActiveBySeatAndStudent(ctx, exec, req.SeatID, req.StudentID)
		if err != nil {
			return err
		}
		if assignment == nil {
			return appErrors.Clone(appErrors.ErrAssignmentNotFound, fmt.Sprintf("no active assignment for seat %s and student %s", req.SeatID, req.StudentID))
		}

		now := s.now()
		params := models.ReleaseParams{
			ReleasedBy: models.StringPtr(req.UnassignedBy),
			Notes:      models.StringPtr(req.Notes),
			ReleasedAt: now,
		}
		if err := s.ledger.Release(ctx, exec, assignment.ID, params); err != nil {
			return err
		}
		assignment.Status = models.AssignmentStatusReleased
		assignment.ReleasedBy = params.ReleasedBy
		assignment.ReleaseNotes = params.Notes
		assignment.ReleasedAt = &now
		assignment.UpdatedAt = now
		released = assignment

		if seat == nil {
			s.logger.Warn("released assignment for missing seat",
				zap.String("seat_id", req.SeatID),
				zap.String("assignment_id", assignment.ID),
			)
			return nil
		}

		// Another active binding can only exist after an out-of-band write;
		// keep the seat coherent with whatever the ledger still holds.
		remaining, err := s.ledger.FindActiveBySeat(ctx, exec, req.SeatID)
		if err != nil {
			return err
		}
		status := models.SeatStatusVacant
		if remaining != nil {
			status = models.SeatStatusOccupied
		}
		if err := s.seats.UpdateStatus(ctx, exec, req.SeatID, status); err != nil {
			return fmt.Errorf("update seat after release: %w", err)
		}
		return nil
	})
	s.metrics.RecordAllocation("unassign", err)
	if err != nil {
		return nil, s.fail(ctx, "unassign", err, "failed to unassign seat", zap.String("seat_id", req.SeatID), zap.String("student_id", req.StudentID))
	}

	s.logger.Info("seat released",
		zap.String("seat_id", released.SeatID),
		zap.String("student_id", released.StudentID),
		zap.String("assignment_id", released.ID),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
	s.afterCommit(ctx, models.EventSeatReleased, released, req.UnassignedBy)
	return released, nil
}

// GetBySeat returns the seat and its active binding, if any.
func (s *SeatAllocationService) GetBySeat(ctx context.Context, seatID string) (*models.SeatOccupancy, error) {
	seat, err := s.seats.FindByID(ctx, nil, seatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seat not found")
		}
		return nil, internalError(err, "failed to load seat")
	}
	assignment, err := s.ledger.FindActiveBySeat(ctx, nil, seatID)
	if err != nil {
		return nil, internalError(err, "failed to load seat assignment")
	}
	return &models.SeatOccupancy{Seat: *seat, Assignment: assignment}, nil
}

// GetByStudent returns the student's active binding.
func (s *SeatAllocationService) GetByStudent(ctx context.Context, studentID string) (*models.SeatAssignment, error) {
	assignment, err := s.ledger.FindActiveByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load student assignment")
	}
	if assignment == nil {
		return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, fmt.Sprintf("student %s has no active seat", studentID))
	}
	return assignment, nil
}

// List pages through the ledger.
func (s *SeatAllocationService) List(ctx context.Context, query dto.AssignmentListQuery) ([]models.SeatAssignment, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment query")
	}
	filter := models.SeatAssignmentFilter{
		SeatID:    query.SeatID,
		StudentID: query.StudentID,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortOrder: query.SortOrder,
	}
	if query.Status != "" {
		status, err := models.ParseAssignmentStatus(query.Status)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment status")
		}
		filter.Status = status
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	items, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list assignments")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// HistoryBySeat returns every binding the seat has had, oldest first.
func (s *SeatAllocationService) HistoryBySeat(ctx context.Context, seatID string) ([]models.SeatAssignment, error) {
	items, err := s.ledger.HistoryBySeat(ctx, seatID)
	if err != nil {
		return nil, internalError(err, "failed to load seat history")
	}
	return items, nil
}

// HistoryByStudent returns every binding the student has had, oldest first.
func (s *SeatAllocationService) HistoryByStudent(ctx context.Context, studentID string) ([]models.SeatAssignment, error) {
	items, err := s.ledger.HistoryByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load student history")
	}
	return items, nil
}

// Stats aggregates seat and assignment counts. Results are cached under a
// versioned key that every mutation rotates, so counts read before a
// concurrent commit are never served afterwards.
func (s *SeatAllocationService) Stats(ctx context.Context) (*models.SeatingStats, error) {
	key := s.cache.VersionedKey(ctx, seatingStatsCacheKey)
	var cached models.SeatingStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	seatCounts, err := s.seats.CountByStatus(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count seats")
	}
	assignmentCounts, err := s.ledger.CountByStatus(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count assignments")
	}

	stats := models.SeatingStats{
		ActiveAssignments:   assignmentCounts[models.AssignmentStatusActive],
		ReleasedAssignments: assignmentCounts[models.AssignmentStatusReleased],
	}
	for _, row := range seatCounts {
		stats.TotalSeats += row.Count
		if !row.IsActive {
			stats.InactiveSeats += row.Count
		}
		switch row.Status {
		case models.SeatStatusVacant:
			stats.VacantSeats += row.Count
			if row.IsActive {
				stats.AvailableSeats += row.Count
			}
		case models.SeatStatusOccupied:
			stats.OccupiedSeats += row.Count
		case models.SeatStatusUnavailable:
			stats.UnavailableSeats += row.Count
		}
	}

	s.cache.Set(ctx, key, stats, s.statsTTL)
	return &stats, nil
}

func (s *SeatAllocationService) ensureStudent(ctx context.Context, studentID string) error {
	if s.students == nil {
		return nil
	}
	ok, err := s.students.Exists(ctx, studentID)
	if err != nil {
		return internalError(err, "failed to verify student")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", studentID))
	}
	return nil
}

func (s *SeatAllocationService) afterCommit(ctx context.Context, eventType string, assignment *models.SeatAssignment, actor string) {
	s.cache.Rotate(ctx, seatingStatsCacheKey)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	event := models.AllocationEvent{
		AssignmentID: assignment.ID,
		SeatID:       assignment.SeatID,
		StudentID:    assignment.StudentID,
		Actor:        actor,
		OccurredAt:   s.now(),
	}
	if err := s.publisher.Publish(pubCtx, events.Message{Type: eventType, OccurredAt: event.OccurredAt, Payload: event}); err != nil {
		s.logger.Warn("allocation event not published", zap.String("event", eventType), zap.String("assignment_id", assignment.ID), zap.Error(err))
	}
}

func (s *SeatAllocationService) fail(ctx context.Context, op string, err error, message string, fields ...zap.Field) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		if appErrors.Retryable(err) {
			s.logger.Warn(op+" aborted by store", append(fields, zap.Error(err))...)
		}
		return appErr
	}
	s.logger.Error(op+" failed", append(fields, zap.String("request_id", requestid.FromContext(ctx)), zap.Error(err))...)
	return internalError(err, message)
}

func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
