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
)

type seatCatalogRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, seat *models.Seat) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error)
	List(ctx context.Context, filter models.SeatFilter) ([]models.Seat, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Seat, error)
}

// SeatService exposes the seat catalog. Occupancy status is never settable here.
type SeatService struct {
	repo      seatCatalogRepository
	cache     *CacheService
	columns   int
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSeatService constructs the catalog service. columns sets the grid width
// used to derive row and column from the seat number.
func NewSeatService(repo seatCatalogRepository, columns int, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SeatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if columns <= 0 {
		columns = 6
	}
	return &SeatService{repo: repo, cache: cache, columns: columns, validator: validate, logger: logger}
}

// Create registers a single vacant, active seat.
func (s *SeatService) Create(ctx context.Context, req dto.CreateSeatRequest) (*models.Seat, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat payload")
	}
	seat := models.NewSeat(req.SeatNumber, s.columns, time.Now().UTC())
	if err := s.repo.Create(ctx, nil, &seat); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateSeatNumber) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateSeatNumber, fmt.Sprintf("seat number %d already exists", req.SeatNumber))
		}
		return nil, internalError(err, "failed to create seat")
	}
	s.cache.Rotate(ctx, seatingStatsCacheKey)
	s.logger.Info("seat created", zap.String("seat_id", seat.ID), zap.Int("seat_number", seat.SeatNumber))
	return &seat, nil
}

// Get returns a seat by id.
func (s *SeatService) Get(ctx context.Context, id string) (*models.Seat, error) {
	seat, err := s.repo.FindByID(ctx, nil, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seat not found")
		}
		return nil, internalError(err, "failed to load seat")
	}
	return seat, nil
}

// List returns seats matching the query.
func (s *SeatService) List(ctx context.Context, query dto.SeatListQuery) ([]models.Seat, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat filter")
	}
	filter := models.SeatFilter{Active: query.Active, Available: query.Available}
	if query.Status != "" {
		status := models.SeatStatus(query.Status)
		filter.Status = &status
	}
	seats, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list seats")
	}
	return seats, nil
}

// SetActive toggles administrative availability. Deactivating an occupied
// seat keeps its current occupant.
func (s *SeatService) SetActive(ctx context.Context, id string, req dto.SetSeatActiveRequest) (*models.Seat, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat payload")
	}
	seat, err := s.repo.SetActive(ctx, strings.TrimSpace(id), *req.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seat not found")
		}
		return nil, internalError(err, "failed to update seat")
	}
	s.cache.Rotate(ctx, seatingStatsCacheKey)
	s.logger.Info("seat activity changed", zap.String("seat_id", seat.ID), zap.Bool("active", seat.IsActive))
	return seat, nil
}
