package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

const assignmentColumns = `id, seat_id, student_id, assigned_date, status, assigned_by, notes, released_by, released_at, release_notes, created_at, updated_at`

// SeatAssignmentRepository persists the seat assignment ledger.
type SeatAssignmentRepository struct {
	db *sqlx.DB
}

// NewSeatAssignmentRepository constructs the ledger repository.
func NewSeatAssignmentRepository(db *sqlx.DB) *SeatAssignmentRepository {
	return &SeatAssignmentRepository{db: db}
}

func (r *SeatAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new binding, filling id, dates and status when empty.
func (r *SeatAssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.SeatAssignment) error {
	if assignment == nil {
		return fmt.Errorf("assignment payload is nil")
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusActive
	}
	now := time.Now().UTC()
	if assignment.AssignedDate.IsZero() {
		assignment.AssignedDate = now.Truncate(24 * time.Hour)
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO seat_assignments (` + assignmentColumns + `)
VALUES (:id, :seat_id, :student_id, :assigned_date, :status, :assigned_by, :notes, :released_by, :released_at, :release_notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return ClassifyError(fmt.Errorf("create seat assignment: %w", err))
	}
	return nil
}

// FindByID returns the assignment or sql.ErrNoRows.
func (r *SeatAssignmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SeatAssignment, error) {
	var assignment models.SeatAssignment
	query := `SELECT ` + assignmentColumns + ` FROM seat_assignments WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *SeatAssignmentRepository) findActive(ctx context.Context, exec sqlx.ExtContext, where string, args ...interface{}) (*models.SeatAssignment, error) {
	var assignment models.SeatAssignment
	query := fmt.Sprintf(`SELECT %s FROM seat_assignments WHERE status = 'active' AND %s ORDER BY created_at ASC LIMIT 1`, assignmentColumns, where)
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, ClassifyError(fmt.Errorf("find active assignment: %w", err))
	}
	return &assignment, nil
}

// FindActiveBySeat returns the active binding for seatID, or nil.
func (r *SeatAssignmentRepository) FindActiveBySeat(ctx context.Context, exec sqlx.ExtContext, seatID string) (*models.SeatAssignment, error) {
	return r.findActive(ctx, exec, "seat_id = $1", seatID)
}

// FindActiveByStudent returns the active binding for studentID, or nil.
func (r *SeatAssignmentRepository) FindActiveByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.SeatAssignment, error) {
	return r.findActive(ctx, exec, "student_id = $1", studentID)
}

// FindActiveBySeatAndStudent matches both sides of the binding, locking the row.
func (r *SeatAssignmentRepository) FindActiveBySeatAndStudent(ctx context.Context, exec sqlx.ExtContext, seatID, studentID string) (*models.SeatAssignment, error) {
	var assignment models.SeatAssignment
	query := `SELECT ` + assignmentColumns + ` FROM seat_assignments
WHERE status = 'active' AND seat_id = $1 AND student_id = $2 LIMIT 1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, seatID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, ClassifyError(fmt.Errorf("find assignment for seat and student: %w", err))
	}
	return &assignment, nil
}

// Release moves an active binding to released. The update is conditional on
// the current status so a second release fails with NOT_ACTIVE.
func (r *SeatAssignmentRepository) Release(ctx context.Context, exec sqlx.ExtContext, id string, params models.ReleaseParams) error {
	releasedAt := params.ReleasedAt
	if releasedAt.IsZero() {
		releasedAt = time.Now().UTC()
	}
	const query = `UPDATE seat_assignments
SET status = $1, released_by = $2, released_at = $3, release_notes = $4, updated_at = $3
WHERE id = $5 AND status = $6`
	result, err := r.exec(exec).ExecContext(ctx, query,
		models.AssignmentStatusReleased, params.ReleasedBy, releasedAt, params.Notes, id, models.AssignmentStatusActive)
	if err != nil {
		return ClassifyError(fmt.Errorf("release seat assignment: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotActive, fmt.Sprintf("assignment %s is not active", id))
	}
	return nil
}

// HistoryBySeat returns every binding for the seat, oldest first.
func (r *SeatAssignmentRepository) HistoryBySeat(ctx context.Context, seatID string) ([]models.SeatAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM seat_assignments WHERE seat_id = $1 ORDER BY created_at ASC, id ASC`
	var items []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &items, query, seatID); err != nil {
		return nil, ClassifyError(fmt.Errorf("seat assignment history: %w", err))
	}
	return items, nil
}

// HistoryByStudent returns every binding for the student, oldest first.
func (r *SeatAssignmentRepository) HistoryByStudent(ctx context.Context, studentID string) ([]models.SeatAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM seat_assignments WHERE student_id = $1 ORDER BY created_at ASC, id ASC`
	var items []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, ClassifyError(fmt.Errorf("student assignment history: %w", err))
	}
	return items, nil
}

// ListActive returns every active binding.
func (r *SeatAssignmentRepository) ListActive(ctx context.Context) ([]models.SeatAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM seat_assignments WHERE status = 'active' ORDER BY created_at ASC, id ASC`
	var items []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, ClassifyError(fmt.Errorf("list active assignments: %w", err))
	}
	return items, nil
}

// List returns a page of the ledger and the total number of matching rows.
func (r *SeatAssignmentRepository) List(ctx context.Context, filter models.SeatAssignmentFilter) ([]models.SeatAssignment, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.SeatID != "" {
		args = append(args, filter.SeatID)
		conditions = append(conditions, fmt.Sprintf("seat_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" {
		order = "DESC"
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}

	query := fmt.Sprintf("SELECT %s FROM seat_assignments WHERE %s ORDER BY created_at %s LIMIT %d OFFSET %d",
		assignmentColumns, where, order, size, (page-1)*size)
	var items []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, ClassifyError(fmt.Errorf("list seat assignments: %w", err))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM seat_assignments WHERE "+where, args...); err != nil {
		return nil, 0, ClassifyError(fmt.Errorf("count seat assignments: %w", err))
	}
	return items, total, nil
}

// CountByStatus returns the number of bindings per status.
func (r *SeatAssignmentRepository) CountByStatus(ctx context.Context) (map[models.AssignmentStatus]int, error) {
	var rows []struct {
		Status models.AssignmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	const query = `SELECT status, COUNT(*) AS count FROM seat_assignments GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, ClassifyError(fmt.Errorf("count assignments by status: %w", err))
	}
	counts := make(map[models.AssignmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteAll removes the entire ledger including history. Only the
// destructive initialise flow calls it.
func (r *SeatAssignmentRepository) DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM seat_assignments`)
	if err != nil {
		return 0, ClassifyError(fmt.Errorf("delete seat assignments: %w", err))
	}
	return result.RowsAffected()
}
