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

type seatService interface {
	Create(ctx context.Context, req dto.CreateSeatRequest) (*models.Seat, error)
	Get(ctx context.Context, id string) (*models.Seat, error)
	List(ctx context.Context, query dto.SeatListQuery) ([]models.Seat, error)
	SetActive(ctx context.Context, id string, req dto.SetSeatActiveRequest) (*models.Seat, error)
}

// SeatHandler exposes the seat catalog.
type SeatHandler struct {
	service seatService
}

// NewSeatHandler builds a new handler.
func NewSeatHandler(service seatService) *SeatHandler {
	return &SeatHandler{service: service}
}

// List godoc
// @Summary List seats
// @Tags Seats
// @Produce json
// @Param status query string false "vacant, occupied or unavailable"
// @Param active query bool false "Administrative activity filter"
// @Param available query bool false "Only active vacant seats"
// @Success 200 {object} response.Envelope
// @Router /seats [get]
func (h *SeatHandler) List(c *gin.Context) {
	var query dto.SeatListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seat filter"))
		return
	}
	seats, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seats, nil)
}

// Create godoc
// @Summary Register a seat
// @Tags Seats
// @Accept json
// @Produce json
// @Param payload body dto.CreateSeatRequest true "Seat payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seats [post]
func (h *SeatHandler) Create(c *gin.Context) {
	var req dto.CreateSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seat payload"))
		return
	}
	seat, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, seat)
}

// Get godoc
// @Summary Get a seat
// @Tags Seats
// @Produce json
// @Param id path string true "Seat ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seats/{id} [get]
func (h *SeatHandler) Get(c *gin.Context) {
	seat, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seat, nil)
}

// SetActive godoc
// @Summary Enable or disable a seat
// @Tags Seats
// @Accept json
// @Produce json
// @Param id path string true "Seat ID"
// @Param payload body dto.SetSeatActiveRequest true "Activity payload"
// @Success 200 {object} response.Envelope
// @Router /seats/{id}/active [patch]
func (h *SeatHandler) SetActive(c *gin.Context) {
	var req dto.SetSeatActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seat payload"))
		return
	}
	seat, err := h.service.SetActive(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seat, nil)
}
