package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-seating-api/internal/dto"
	"github.com/noah-isme/sma-seating-api/internal/middleware"
	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

type allocationServiceMock struct {
	assignReq   dto.AssignSeatRequest
	assignResp  *models.SeatAssignment
	assignErr   error
	unassignReq dto.UnassignSeatRequest
	unassignErr error
	listQuery   dto.AssignmentListQuery
	occupancy   *models.SeatOccupancy
	studentErr  error
	stats       *models.SeatingStats
}

func (m *allocationServiceMock) Assign(ctx context.Context, req dto.AssignSeatRequest) (*models.SeatAssignment, error) {
	m.assignReq = req
	return m.assignResp, m.assignErr
}

func (m *allocationServiceMock) Unassign(ctx context.Context, req dto.UnassignSeatRequest) (*models.SeatAssignment, error) {
	m.unassignReq = req
	if m.unassignErr != nil {
		return nil, m.unassignErr
	}
	return &models.SeatAssignment{ID: "a1", SeatID: req.SeatID, StudentID: req.StudentID, Status: models.AssignmentStatusReleased}, nil
}

func (m *allocationServiceMock) GetBySeat(ctx context.Context, seatID string) (*models.SeatOccupancy, error) {
	return m.occupancy, nil
}

func (m *allocationServiceMock) GetByStudent(ctx context.Context, studentID string) (*models.SeatAssignment, error) {
	return nil, m.studentErr
}

func (m *allocationServiceMock) List(ctx context.Context, query dto.AssignmentListQuery) ([]models.SeatAssignment, *models.Pagination, error) {
	m.listQuery = query
	return []models.SeatAssignment{{ID: "a1"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (m *allocationServiceMock) HistoryBySeat(ctx context.Context, seatID string) ([]models.SeatAssignment, error) {
	return []models.SeatAssignment{{ID: "a1", SeatID: seatID}}, nil
}

func (m *allocationServiceMock) HistoryByStudent(ctx context.Context, studentID string) ([]models.SeatAssignment, error) {
	return []models.SeatAssignment{{ID: "a1", StudentID: studentID}}, nil
}

func (m *allocationServiceMock) Stats(ctx context.Context) (*models.SeatingStats, error) {
	return m.stats, nil
}

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestSeatingHandlerAssignDefaultsActor(t *testing.T) {
	mockSvc := &allocationServiceMock{assignResp: &models.SeatAssignment{ID: "a1", SeatID: "seat_5", StudentID: "s1", Status: models.AssignmentStatusActive}}
	handler := NewSeatingHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/seating/assign", `{"seatId":"seat_5","studentId":"s1"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Assign(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.assignReq.AssignedBy)
	assert.Contains(t, w.Body.String(), `"seat_id":"seat_5"`)
}

func TestSeatingHandlerAssignConflict(t *testing.T) {
	mockSvc := &allocationServiceMock{assignErr: appErrors.Clone(appErrors.ErrSeatAlreadyAssigned, "seat seat_5 already has an active assignment")}
	handler := NewSeatingHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/seating/assign", `{"seatId":"seat_5","studentId":"s2","assignedBy":"admin"}`)
	handler.Assign(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "admin", mockSvc.assignReq.AssignedBy)
	assert.Contains(t, string(decodeEnvelope(t, w)["error"]), "SEAT_ALREADY_ASSIGNED")
}

func TestSeatingHandlerAssignInvalidBody(t *testing.T) {
	handler := NewSeatingHandler(&allocationServiceMock{})

	c, w := newJSONContext(http.MethodPost, "/seating/assign", `{"seatId":`)
	handler.Assign(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeatingHandlerUnassignStorageError(t *testing.T) {
	storage := appErrors.Wrap(errors.New("deadlock"), appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	handler := NewSeatingHandler(&allocationServiceMock{unassignErr: storage})

	c, w := newJSONContext(http.MethodPost, "/seating/unassign", `{"seatId":"seat_5","studentId":"s1"}`)
	handler.Unassign(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "STORAGE_ERROR")
}

func TestSeatingHandlerUnassign(t *testing.T) {
	mockSvc := &allocationServiceMock{}
	handler := NewSeatingHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/seating/unassign", `{"seatId":"seat_5","studentId":"s1","notes":"graduated"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.Unassign(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", mockSvc.unassignReq.UnassignedBy)
	assert.Equal(t, "graduated", mockSvc.unassignReq.Notes)
}

func TestSeatingHandlerListBindsQuery(t *testing.T) {
	mockSvc := &allocationServiceMock{}
	handler := NewSeatingHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/seating/assignments?seatId=seat_1&status=active&page=2&pageSize=10", "")
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "seat_1", mockSvc.listQuery.SeatID)
	assert.Equal(t, 2, mockSvc.listQuery.Page)
	assert.Equal(t, 10, mockSvc.listQuery.PageSize)
	assert.Contains(t, decodeEnvelope(t, w), "pagination")
}

func TestSeatingHandlerGetByStudentNotFound(t *testing.T) {
	handler := NewSeatingHandler(&allocationServiceMock{studentErr: appErrors.Clone(appErrors.ErrAssignmentNotFound, "student s1 has no active seat")})

	c, w := newJSONContext(http.MethodGet, "/seating/students/s1", "")
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}}
	handler.GetByStudent(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ASSIGNMENT_NOT_FOUND")
}

func TestSeatingHandlerHistoryAndStats(t *testing.T) {
	now := time.Now()
	mockSvc := &allocationServiceMock{
		stats:     &models.SeatingStats{TotalSeats: 30, OccupiedSeats: 12},
		occupancy: &models.SeatOccupancy{Seat: models.NewSeat(5, 6, now)},
	}
	handler := NewSeatingHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/seating/seats/seat_5/history", "")
	c.Params = gin.Params{{Key: "seatId", Value: "seat_5"}}
	handler.SeatHistory(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seat_id":"seat_5"`)

	c, w = newJSONContext(http.MethodGet, "/seating/students/s1/history", "")
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}}
	handler.StudentHistory(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newJSONContext(http.MethodGet, "/seating/seats/seat_5", "")
	c.Params = gin.Params{{Key: "seatId", Value: "seat_5"}}
	handler.GetBySeat(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"assignment"`)

	c, w = newJSONContext(http.MethodGet, "/seating/stats", "")
	handler.Stats(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"total_seats":30`))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
