package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/models"
	"github.com/noah-isme/sma-seating-api/pkg/export"
)

const defaultDegradedThresholdPct = 10

type auditSeatReader interface {
	ListAll(ctx context.Context) ([]models.Seat, error)
}

type auditLedgerReader interface {
	ListActive(ctx context.Context) ([]models.SeatAssignment, error)
}

// SeatConsistencyService compares the seat catalog with the assignment
// ledger. It never writes.
type SeatConsistencyService struct {
	seats        auditSeatReader
	ledger       auditLedgerReader
	metrics      *MetricsService
	logger       *zap.Logger
	thresholdPct int
	now          func() time.Time
}

// NewSeatConsistencyService constructs the auditor. thresholdPct is the share
// of seats with findings still graded DEGRADED; non-positive values use 10.
func NewSeatConsistencyService(seats auditSeatReader, ledger auditLedgerReader, thresholdPct int, metrics *MetricsService, logger *zap.Logger) *SeatConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholdPct <= 0 {
		thresholdPct = defaultDegradedThresholdPct
	}
	return &SeatConsistencyService{
		seats:        seats,
		ledger:       ledger,
		metrics:      metrics,
		logger:       logger,
		thresholdPct: thresholdPct,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RunHealthCheck scans every seat and active assignment and classifies
// divergences as ORPHANED, MISMATCH or DUPLICATE.
func (s *SeatConsistencyService) RunHealthCheck(ctx context.Context) (*models.HealthReport, error) {
	seats, err := s.seats.ListAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load seats")
	}
	active, err := s.ledger.ListActive(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load active assignments")
	}

	report := Audit(seats, active, s.thresholdPct)
	report.CheckedAt = s.now()
	s.metrics.RecordHealthReport(report)

	fields := []zap.Field{
		zap.String("status", string(report.Status)),
		zap.Int("total_seats", report.TotalSeats),
		zap.Int("mismatched_seats", report.MismatchedSeats),
		zap.Int("issues", len(report.Issues)),
	}
	if report.Status == models.HealthStatusHealthy {
		s.logger.Info("seating health check completed", fields...)
	} else {
		s.logger.Warn("seating health check found issues", fields...)
	}
	return &report, nil
}

// Audit classifies findings for a snapshot of seats and active assignments.
// Seats are expected in seat-number order.
func Audit(seats []models.Seat, active []models.SeatAssignment, thresholdPct int) models.HealthReport {
	seatsByID := make(map[string]models.Seat, len(seats))
	order := make(map[string]int, len(seats))
	for i, seat := range seats {
		seatsByID[seat.ID] = seat
		order[seat.ID] = i
	}

	bySeat := make(map[string][]models.SeatAssignment)
	byStudent := make(map[string][]models.SeatAssignment)
	issues := make([]models.ConsistencyIssue, 0)

	for _, assignment := range active {
		if _, ok := seatsByID[assignment.SeatID]; !ok {
			issues = append(issues, models.ConsistencyIssue{
				SeatID:        assignment.SeatID,
				Type:          models.IssueOrphaned,
				Description:   "assignment references nonexistent seat",
				AssignmentIDs: []string{assignment.ID},
				StudentID:     assignment.StudentID,
			})
			continue
		}
		bySeat[assignment.SeatID] = append(bySeat[assignment.SeatID], assignment)
		byStudent[assignment.StudentID] = append(byStudent[assignment.StudentID], assignment)
	}

	for _, seat := range seats {
		held := bySeat[seat.ID]
		occupied := seat.Status == models.SeatStatusOccupied
		switch {
		case occupied && len(held) == 0:
			issues = append(issues, models.ConsistencyIssue{
				SeatID:      seat.ID,
				Type:        models.IssueMismatch,
				Description: "seat marked occupied without an active assignment",
			})
		case !occupied && len(held) > 0:
			issues = append(issues, models.ConsistencyIssue{
				SeatID:        seat.ID,
				Type:          models.IssueMismatch,
				Description:   fmt.Sprintf("seat marked %s but has an active assignment", seat.Status),
				AssignmentIDs: assignmentIDs(held),
				StudentID:     held[0].StudentID,
			})
		}
		if len(held) > 1 {
			issues = append(issues, models.ConsistencyIssue{
				SeatID:        seat.ID,
				Type:          models.IssueDuplicate,
				Description:   fmt.Sprintf("seat has %d active assignments", len(held)),
				AssignmentIDs: assignmentIDs(held),
			})
		}
	}

	students := make([]string, 0, len(byStudent))
	for studentID, held := range byStudent {
		if len(held) > 1 {
			students = append(students, studentID)
		}
	}
	sort.Strings(students)
	for _, studentID := range students {
		held := append([]models.SeatAssignment(nil), byStudent[studentID]...)
		sort.SliceStable(held, func(i, j int) bool { return order[held[i].SeatID] < order[held[j].SeatID] })
		seatIDs := make([]string, 0, len(held))
		for _, a := range held {
			seatIDs = append(seatIDs, a.SeatID)
		}
		issues = append(issues, models.ConsistencyIssue{
			SeatID:        held[0].SeatID,
			Type:          models.IssueDuplicate,
			Description:   fmt.Sprintf("student holds %d active seats: %s", len(held), strings.Join(seatIDs, ", ")),
			AssignmentIDs: assignmentIDs(held),
			StudentID:     studentID,
		})
	}

	affected := make(map[string]struct{}, len(issues))
	for _, issue := range issues {
		affected[issue.SeatID] = struct{}{}
	}

	report := models.HealthReport{
		TotalSeats:      len(seats),
		MismatchedSeats: len(affected),
		Issues:          issues,
	}
	report.Status = gradeHealth(len(issues), report.MismatchedSeats, report.TotalSeats, thresholdPct)
	return report
}

func gradeHealth(issues, mismatched, total, thresholdPct int) models.HealthStatus {
	if issues == 0 {
		return models.HealthStatusHealthy
	}
	if total > 0 && mismatched*100 <= total*thresholdPct {
		return models.HealthStatusDegraded
	}
	return models.HealthStatusUnhealthy
}

func assignmentIDs(items []models.SeatAssignment) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// HealthReportDataset flattens a report for CSV or PDF export.
func HealthReportDataset(report models.HealthReport) export.Dataset {
	counts := report.CountByType()
	rows := make([]map[string]string, 0, len(report.Issues))
	for _, issue := range report.Issues {
		rows = append(rows, map[string]string{
			"Seat":        issue.SeatID,
			"Type":        string(issue.Type),
			"Student":     issue.StudentID,
			"Assignments": strings.Join(issue.AssignmentIDs, " "),
			"Description": issue.Description,
		})
	}
	return export.Dataset{
		Title: "Seating Health Report",
		Notes: []string{
			fmt.Sprintf("Status: %s", report.Status),
			fmt.Sprintf("Checked at: %s", report.CheckedAt.Format(time.RFC3339)),
			fmt.Sprintf("Seats: %d, affected: %d", report.TotalSeats, report.MismatchedSeats),
			fmt.Sprintf("Orphaned: %d, mismatch: %d, duplicate: %d", counts[models.IssueOrphaned], counts[models.IssueMismatch], counts[models.IssueDuplicate]),
		},
		Headers: []string{"Seat", "Type", "Student", "Assignments", "Description"},
		Rows:    rows,
	}
}
