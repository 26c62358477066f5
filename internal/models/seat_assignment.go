package models

import (
	"fmt"
	"strings"
	"time"
)

// AssignmentStatus tracks the lifecycle of a seat binding. The only
// transition is active -> released.
type AssignmentStatus string

const (
	AssignmentStatusActive   AssignmentStatus = "active"
	AssignmentStatusReleased AssignmentStatus = "released"
)

// Attendance-style spellings found in older clients. They are accepted on
// input only and never stored.
var assignmentStatusAliases = map[string]AssignmentStatus{
	"present":   AssignmentStatusActive,
	"dismissed": AssignmentStatusReleased,
}

// ParseAssignmentStatus normalises raw into an AssignmentStatus.
func ParseAssignmentStatus(raw string) (AssignmentStatus, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch AssignmentStatus(value) {
	case AssignmentStatusActive, AssignmentStatusReleased:
		return AssignmentStatus(value), nil
	}
	if alias, ok := assignmentStatusAliases[value]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("unknown assignment status %q", raw)
}

// SeatAssignment binds one seat to one student. Released rows are kept as history.
type SeatAssignment struct {
	ID           string           `db:"id" json:"id"`
	SeatID       string           `db:"seat_id" json:"seat_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	AssignedDate time.Time        `db:"assigned_date" json:"assigned_date"`
	Status       AssignmentStatus `db:"status" json:"status"`
	AssignedBy   *string          `db:"assigned_by" json:"assigned_by,omitempty"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	ReleasedBy   *string          `db:"released_by" json:"released_by,omitempty"`
	ReleasedAt   *time.Time       `db:"released_at" json:"released_at,omitempty"`
	ReleaseNotes *string          `db:"release_notes" json:"release_notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// Active reports whether the binding currently defines occupancy.
func (a SeatAssignment) Active() bool {
	return a.Status == AssignmentStatusActive
}

// ReleaseParams records who closed a binding and why.
type ReleaseParams struct {
	ReleasedBy *string
	Notes      *string
	ReleasedAt time.Time
}

// SeatAssignmentFilter captures list criteria for the ledger.
type SeatAssignmentFilter struct {
	SeatID    string
	StudentID string
	Status    AssignmentStatus
	Page      int
	PageSize  int
	SortOrder string
}

// SeatOccupancy pairs a seat with its active binding, if any.
type SeatOccupancy struct {
	Seat       Seat            `json:"seat"`
	Assignment *SeatAssignment `json:"assignment,omitempty"`
}

// StringPtr returns nil for blank strings.
func StringPtr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
