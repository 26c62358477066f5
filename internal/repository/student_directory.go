package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StudentDirectory answers existence checks against the students table owned
// by the student records module.
type StudentDirectory struct {
	db *sqlx.DB
}

// NewStudentDirectory constructs a StudentDirectory.
func NewStudentDirectory(db *sqlx.DB) *StudentDirectory {
	return &StudentDirectory{db: db}
}

// Exists reports whether an active student with id exists.
func (r *StudentDirectory) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM students WHERE id = $1 AND active = TRUE LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}
