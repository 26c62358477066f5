package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-seating-api/internal/models"
)

const seatColumns = `id, seat_number, row_number, col_number, status, is_active, last_updated, created_at`

// SeatRepository provides typed access to the seat catalog.
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository constructs a SeatRepository.
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

func (r *SeatRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a seat. A duplicate number surfaces as a unique violation
// that ClassifyError maps to DUPLICATE_SEAT_NUMBER.
func (r *SeatRepository) Create(ctx context.Context, exec sqlx.ExtContext, seat *models.Seat) error {
	if seat == nil {
		return fmt.Errorf("seat payload is nil")
	}
	now := time.Now().UTC()
	if seat.CreatedAt.IsZero() {
		seat.CreatedAt = now
	}
	seat.LastUpdated = now
	const query = `INSERT INTO seats (` + seatColumns + `)
VALUES (:id, :seat_number, :row_number, :col_number, :status, :is_active, :last_updated, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, seat); err != nil {
		return ClassifyError(fmt.Errorf("create seat: %w", err))
	}
	return nil
}

// CreateBatch inserts seats with a single multi-row statement.
func (r *SeatRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, seats []models.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range seats {
		if seats[i].CreatedAt.IsZero() {
			seats[i].CreatedAt = now
		}
		seats[i].LastUpdated = now
	}
	const query = `INSERT INTO seats (` + seatColumns + `)
VALUES (:id, :seat_number, :row_number, :col_number, :status, :is_active, :last_updated, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, seats); err != nil {
		return ClassifyError(fmt.Errorf("create seat batch: %w", err))
	}
	return nil
}

// FindByID returns the seat or sql.ErrNoRows.
func (r *SeatRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error) {
	var seat models.Seat
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.exec(exec), &seat, query, id); err != nil {
		return nil, err
	}
	return &seat, nil
}

// FindByIDForUpdate locks the seat row for the remainder of the transaction.
// Returns nil, nil when the seat does not exist.
func (r *SeatRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error) {
	var seat models.Seat
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.exec(exec), &seat, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, ClassifyError(fmt.Errorf("lock seat: %w", err))
	}
	return &seat, nil
}

// List returns seats matching filter ordered by seat number.
func (r *SeatRepository) List(ctx context.Context, filter models.SeatFilter) ([]models.Seat, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Available {
		args = append(args, models.SeatStatusVacant)
		conditions = append(conditions, fmt.Sprintf("is_active = TRUE AND status = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM seats WHERE %s ORDER BY seat_number ASC", seatColumns, strings.Join(conditions, " AND "))

	var seats []models.Seat
	if err := r.db.SelectContext(ctx, &seats, query, args...); err != nil {
		return nil, ClassifyError(fmt.Errorf("list seats: %w", err))
	}
	return seats, nil
}

// ListByStatus returns seats in the given status.
func (r *SeatRepository) ListByStatus(ctx context.Context, status models.SeatStatus) ([]models.Seat, error) {
	return r.List(ctx, models.SeatFilter{Status: &status})
}

// ListActive returns seats not administratively disabled.
func (r *SeatRepository) ListActive(ctx context.Context) ([]models.Seat, error) {
	active := true
	return r.List(ctx, models.SeatFilter{Active: &active})
}

// ListAvailable returns active vacant seats.
func (r *SeatRepository) ListAvailable(ctx context.Context) ([]models.Seat, error) {
	return r.List(ctx, models.SeatFilter{Available: true})
}

// ListAll returns every seat.
func (r *SeatRepository) ListAll(ctx context.Context) ([]models.Seat, error) {
	return r.List(ctx, models.SeatFilter{})
}

// ExistingNumbers returns seat numbers already taken within [start, end].
func (r *SeatRepository) ExistingNumbers(ctx context.Context, exec sqlx.ExtContext, start, end int) ([]int, error) {
	const query = `SELECT seat_number FROM seats WHERE seat_number BETWEEN $1 AND $2 ORDER BY seat_number ASC`
	var numbers []int
	if err := sqlx.SelectContext(ctx, r.exec(exec), &numbers, query, start, end); err != nil {
		return nil, ClassifyError(fmt.Errorf("check seat numbers: %w", err))
	}
	return numbers, nil
}

// UpdateStatus writes the derived occupancy status. It is only called by
// the allocation, repair and provisioning services.
func (r *SeatRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SeatStatus) error {
	const query = `UPDATE seats SET status = $1, last_updated = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return ClassifyError(fmt.Errorf("update seat status: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("seat status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResetOccupied marks every occupied seat vacant and returns how many changed.
func (r *SeatRepository) ResetOccupied(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	const query = `UPDATE seats SET status = $1, last_updated = $2 WHERE status = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, models.SeatStatusVacant, time.Now().UTC(), models.SeatStatusOccupied)
	if err != nil {
		return 0, ClassifyError(fmt.Errorf("reset occupied seats: %w", err))
	}
	return result.RowsAffected()
}

// SetActive toggles administrative availability and returns the updated seat.
func (r *SeatRepository) SetActive(ctx context.Context, id string, active bool) (*models.Seat, error) {
	query := `UPDATE seats SET is_active = $1, last_updated = $2 WHERE id = $3 RETURNING ` + seatColumns
	var seat models.Seat
	if err := r.db.GetContext(ctx, &seat, query, active, time.Now().UTC(), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, ClassifyError(fmt.Errorf("set seat active: %w", err))
	}
	return &seat, nil
}

// CountByStatus groups seats by status and activity.
func (r *SeatRepository) CountByStatus(ctx context.Context) ([]models.SeatStatusCount, error) {
	const query = `SELECT status, is_active, COUNT(*) AS count FROM seats GROUP BY status, is_active`
	var rows []models.SeatStatusCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, ClassifyError(fmt.Errorf("count seats by status: %w", err))
	}
	return rows, nil
}
