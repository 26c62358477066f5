package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones still match their sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrLocked             = New("LOCKED", http.StatusLocked, "another maintenance operation is running")
)

// Seat allocation precondition violations. None of these are retried automatically.
var (
	ErrSeatUnavailable        = New("SEAT_UNAVAILABLE", http.StatusConflict, "seat is not available")
	ErrSeatAlreadyAssigned    = New("SEAT_ALREADY_ASSIGNED", http.StatusConflict, "seat already has an active assignment")
	ErrStudentAlreadyAssigned = New("STUDENT_ALREADY_ASSIGNED", http.StatusConflict, "student already has an active seat")
	ErrAssignmentNotFound     = New("ASSIGNMENT_NOT_FOUND", http.StatusNotFound, "active assignment not found")
	ErrNotActive              = New("NOT_ACTIVE", http.StatusConflict, "assignment is not active")
	ErrDuplicateSeatNumber    = New("DUPLICATE_SEAT_NUMBER", http.StatusConflict, "seat number already exists")
)

// ErrStorage marks transient store faults (contention, aborts, connectivity).
// The whole operation may be retried because an aborted transaction leaves no writes.
var ErrStorage = New("STORAGE_ERROR", http.StatusServiceUnavailable, "storage unavailable, retry the operation")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Retryable reports whether the error is a transient storage fault.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
