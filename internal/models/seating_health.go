package models

import "time"

// HealthStatus grades a consistency report.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// IssueType classifies a divergence between seats and the ledger.
type IssueType string

const (
	IssueOrphaned  IssueType = "ORPHANED"
	IssueMismatch  IssueType = "MISMATCH"
	IssueDuplicate IssueType = "DUPLICATE"
)

// ConsistencyIssue is one finding from the auditor.
type ConsistencyIssue struct {
	SeatID        string    `json:"seat_id"`
	Type          IssueType `json:"type"`
	Description   string    `json:"description"`
	AssignmentIDs []string  `json:"assignment_ids,omitempty"`
	StudentID     string    `json:"student_id,omitempty"`
}

// HealthReport is the auditor output.
type HealthReport struct {
	Status          HealthStatus       `json:"status"`
	TotalSeats      int                `json:"total_seats"`
	MismatchedSeats int                `json:"mismatched_seats"`
	Issues          []ConsistencyIssue `json:"issues"`
	CheckedAt       time.Time          `json:"checked_at"`
}

// CountByType tallies issues per classification.
func (r HealthReport) CountByType() map[IssueType]int {
	counts := map[IssueType]int{IssueOrphaned: 0, IssueMismatch: 0, IssueDuplicate: 0}
	for _, issue := range r.Issues {
		counts[issue.Type]++
	}
	return counts
}

// RepairAction names the corrective write taken for an issue.
type RepairAction string

const (
	RepairReleaseAssignment RepairAction = "release_assignment"
	RepairMarkOccupied      RepairAction = "mark_occupied"
	RepairMarkVacant        RepairAction = "mark_vacant"
	RepairNoop              RepairAction = "noop"
	RepairSkipped           RepairAction = "skipped"
	RepairEscalated         RepairAction = "escalated"
)

// RepairResult reports the outcome of one repair.
type RepairResult struct {
	SeatID  string       `json:"seat_id"`
	Type    IssueType    `json:"type"`
	Action  RepairAction `json:"action"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
}

// RepairSummary wraps a full auto-repair pass.
type RepairSummary struct {
	Report      HealthReport   `json:"report"`
	Results     []RepairResult `json:"results"`
	Repaired    int            `json:"repaired"`
	Failed      int            `json:"failed"`
	Escalated   int            `json:"escalated"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// SeatingStats aggregates counts by status.
type SeatingStats struct {
	TotalSeats          int `json:"total_seats"`
	VacantSeats         int `json:"vacant_seats"`
	OccupiedSeats       int `json:"occupied_seats"`
	UnavailableSeats    int `json:"unavailable_seats"`
	InactiveSeats       int `json:"inactive_seats"`
	AvailableSeats      int `json:"available_seats"`
	ActiveAssignments   int `json:"active_assignments"`
	ReleasedAssignments int `json:"released_assignments"`
}

// AllocationEvent is published after an assignment commits or is released.
type AllocationEvent struct {
	AssignmentID string    `json:"assignment_id"`
	SeatID       string    `json:"seat_id"`
	StudentID    string    `json:"student_id"`
	Actor        string    `json:"actor,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Allocation event types.
const (
	EventSeatAssigned = "seat.assigned"
	EventSeatReleased = "seat.released"
)
