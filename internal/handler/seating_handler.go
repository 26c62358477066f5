package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-seating-api/internal/dto"
	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
	"github.com/noah-isme/sma-seating-api/pkg/response"
)

type seatAllocationService interface {
	Assign(ctx context.Context, req dto.AssignSeatRequest) (*models.SeatAssignment, error)
	Unassign(ctx context.Context, req dto.UnassignSeatRequest) (*models.SeatAssignment, error)
	GetBySeat(ctx context.Context, seatID string) (*models.SeatOccupancy, error)
	GetByStudent(ctx context.Context, studentID string) (*models.SeatAssignment, error)
	List(ctx context.Context, query dto.AssignmentListQuery) ([]models.SeatAssignment, *models.Pagination, error)
	HistoryBySeat(ctx context.Context, seatID string) ([]models.SeatAssignment, error)
	HistoryByStudent(ctx context.Context, studentID string) ([]models.SeatAssignment, error)
	Stats(ctx context.Context) (*models.SeatingStats, error)
}

// SeatingHandler exposes incremental seat allocation.
type SeatingHandler struct {
	service seatAllocationService
}

// NewSeatingHandler builds a new handler.
func NewSeatingHandler(service seatAllocationService) *SeatingHandler {
	return &SeatingHandler{service: service}
}

// Assign godoc
// @Summary Assign a student to a seat
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.AssignSeatRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /seating/assign [post]
func (h *SeatingHandler) Assign(c *gin.Context) {
	var req dto.AssignSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assign payload"))
		return
	}
	if req.AssignedBy == "" {
		req.AssignedBy = actorFromContext(c)
	}
	assignment, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Unassign godoc
// @Summary Release a student's seat
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.UnassignSeatRequest true "Release payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating/unassign [post]
func (h *SeatingHandler) Unassign(c *gin.Context) {
	var req dto.UnassignSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid unassign payload"))
		return
	}
	if req.UnassignedBy == "" {
		req.UnassignedBy = actorFromContext(c)
	}
	assignment, err := h.service.Unassign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// List godoc
// @Summary List seat assignments
// @Tags Seating
// @Produce json
// @Param seatId query string false "Seat filter"
// @Param studentId query string false "Student filter"
// @Param status query string false "active or released"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /seating/assignments [get]
func (h *SeatingHandler) List(c *gin.Context) {
	var query dto.AssignmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment query"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetBySeat godoc
// @Summary Get a seat and its occupant
// @Tags Seating
// @Produce json
// @Param seatId path string true "Seat ID"
// @Success 200 {object} response.Envelope
// @Router /seating/seats/{seatId} [get]
func (h *SeatingHandler) GetBySeat(c *gin.Context) {
	occupancy, err := h.service.GetBySeat(c.Request.Context(), c.Param("seatId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occupancy, nil)
}

// GetByStudent godoc
// @Summary Get a student's active seat
// @Tags Seating
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating/students/{studentId} [get]
func (h *SeatingHandler) GetByStudent(c *gin.Context) {
	assignment, err := h.service.GetByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// SeatHistory godoc
// @Summary Assignment history for a seat
// @Tags Seating
// @Produce json
// @Param seatId path string true "Seat ID"
// @Success 200 {object} response.Envelope
// @Router /seating/seats/{seatId}/history [get]
func (h *SeatingHandler) SeatHistory(c *gin.Context) {
	items, err := h.service.HistoryBySeat(c.Request.Context(), c.Param("seatId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// StudentHistory godoc
// @Summary Assignment history for a student
// @Tags Seating
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /seating/students/{studentId}/history [get]
func (h *SeatingHandler) StudentHistory(c *gin.Context) {
	items, err := h.service.HistoryByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Stats godoc
// @Summary Seat and assignment counts
// @Tags Seating
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /seating/stats [get]
func (h *SeatingHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
