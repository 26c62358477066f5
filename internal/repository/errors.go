package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

// Unique indexes backing the allocation invariants.
const (
	ConstraintActiveSeat    = "seat_assignments_active_seat_key"
	ConstraintActiveStudent = "seat_assignments_active_student_key"
	ConstraintSeatNumber    = "seats_seat_number_key"
	ConstraintSeatPK        = "seats_pkey"
)

const (
	pqUniqueViolation      pq.ErrorCode = "23505"
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
	pqLockNotAvailable     pq.ErrorCode = "55P03"
	pqQueryCanceled        pq.ErrorCode = "57014"
	pqAdminShutdown        pq.ErrorCode = "57P01"
)

// ClassifyError translates driver failures into typed application errors.
// Unique violations on the allocation indexes become the matching conflict,
// and contention or connectivity faults become ErrStorage. Errors that are
// already typed, and anything unrecognised, are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			switch pqErr.Constraint {
			case ConstraintActiveSeat:
				return appErrors.Wrap(err, appErrors.ErrSeatAlreadyAssigned.Code, appErrors.ErrSeatAlreadyAssigned.Status, appErrors.ErrSeatAlreadyAssigned.Message)
			case ConstraintActiveStudent:
				return appErrors.Wrap(err, appErrors.ErrStudentAlreadyAssigned.Code, appErrors.ErrStudentAlreadyAssigned.Status, appErrors.ErrStudentAlreadyAssigned.Message)
			case ConstraintSeatNumber, ConstraintSeatPK:
				return appErrors.Wrap(err, appErrors.ErrDuplicateSeatNumber.Code, appErrors.ErrDuplicateSeatNumber.Status, appErrors.ErrDuplicateSeatNumber.Message)
			}
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "record already exists")
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable, pqQueryCanceled, pqAdminShutdown:
			return storageError(err)
		}
		if pqErr.Code.Class() == "08" {
			return storageError(err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return storageError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return storageError(err)
	}
	return err
}

func storageError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
}
