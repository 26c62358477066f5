package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-seating-api/internal/dto"
	"github.com/noah-isme/sma-seating-api/internal/models"
	"github.com/noah-isme/sma-seating-api/internal/service"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
	"github.com/noah-isme/sma-seating-api/pkg/export"
	"github.com/noah-isme/sma-seating-api/pkg/response"
)

type seatingAuditor interface {
	RunHealthCheck(ctx context.Context) (*models.HealthReport, error)
}

type seatingRepairer interface {
	RunAutoRepair(ctx context.Context) (*models.RepairSummary, error)
}

type seatingProvisioner interface {
	ProvisionBatch(ctx context.Context, req dto.ProvisionSeatsRequest) ([]models.Seat, error)
	BulkAssign(ctx context.Context, req dto.BulkAssignRequest) ([]models.SeatAssignment, error)
	Initialize(ctx context.Context, req dto.BulkAssignRequest) ([]models.SeatAssignment, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// SeatingAdminHandler exposes maintenance operations: auditing, repair and
// the invariant-bypassing bulk API.
type SeatingAdminHandler struct {
	auditor     seatingAuditor
	repairer    seatingRepairer
	provisioner seatingProvisioner
	renderers   map[export.Format]datasetRenderer
}

// NewSeatingAdminHandler builds a new handler.
func NewSeatingAdminHandler(auditor seatingAuditor, repairer seatingRepairer, provisioner seatingProvisioner) *SeatingAdminHandler {
	return &SeatingAdminHandler{
		auditor:     auditor,
		repairer:    repairer,
		provisioner: provisioner,
		renderers: map[export.Format]datasetRenderer{
			export.FormatCSV: export.NewCSVExporter(),
			export.FormatPDF: export.NewPDFExporter(),
		},
	}
}

// Health godoc
// @Summary Run a seating consistency check
// @Tags Seating Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/seating/health [get]
func (h *SeatingAdminHandler) Health(c *gin.Context) {
	report, err := h.auditor.RunHealthCheck(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportHealth godoc
// @Summary Download a seating consistency report
// @Tags Seating Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /admin/seating/health/export [get]
func (h *SeatingAdminHandler) ExportHealth(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	report, err := h.auditor.RunHealthCheck(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.renderers[format].Render(service.HealthReportDataset(*report))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report"))
		return
	}
	filename := fmt.Sprintf("seating-health-%s.%s", report.CheckedAt.Format("20060102-150405"), format)
	response.Attachment(c, filename, format.ContentType(), body)
}

// Repair godoc
// @Summary Audit and auto-repair seating state
// @Tags Seating Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /admin/seating/repair [post]
func (h *SeatingAdminHandler) Repair(c *gin.Context) {
	summary, err := h.repairer.RunAutoRepair(c.Request.Context())
	if err != nil {
		if summary == nil {
			response.Error(c, err)
			return
		}
		h.respondPartial(c, summary, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Provision godoc
// @Summary Create a contiguous range of seats
// @Tags Seating Admin
// @Accept json
// @Produce json
// @Param payload body dto.ProvisionSeatsRequest true "Range payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/seating/seats/provision [post]
func (h *SeatingAdminHandler) Provision(c *gin.Context) {
	var req dto.ProvisionSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid provision payload"))
		return
	}
	seats, err := h.provisioner.ProvisionBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, seats)
}

// BulkAssign godoc
// @Summary Pair students with seats in seat-number order
// @Description Skips per-pair invariant checks. Intended for empty ledgers.
// @Tags Seating Admin
// @Accept json
// @Produce json
// @Param payload body dto.BulkAssignRequest true "Students"
// @Success 201 {object} response.Envelope
// @Router /admin/seating/bulk-assign [post]
func (h *SeatingAdminHandler) BulkAssign(c *gin.Context) {
	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk assign payload"))
		return
	}
	items, err := h.provisioner.BulkAssign(c.Request.Context(), req)
	h.respondBulk(c, req, items, err)
}

// Initialize godoc
// @Summary Wipe all assignments and bulk assign
// @Description Destructive. Disabled unless SEATING_ALLOW_DESTRUCTIVE is set.
// @Tags Seating Admin
// @Accept json
// @Produce json
// @Param payload body dto.BulkAssignRequest true "Students"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/seating/initialize [post]
func (h *SeatingAdminHandler) Initialize(c *gin.Context) {
	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid initialize payload"))
		return
	}
	items, err := h.provisioner.Initialize(c.Request.Context(), req)
	h.respondBulk(c, req, items, err)
}

// respondBulk reports partially written batches alongside the error that
// stopped them.
func (h *SeatingAdminHandler) respondBulk(c *gin.Context, req dto.BulkAssignRequest, items []models.SeatAssignment, err error) {
	if items == nil {
		items = []models.SeatAssignment{}
	}
	payload := dto.BulkAssignResponse{Requested: len(req.StudentIDs), Assigned: len(items), Items: items}
	if err != nil {
		if len(items) == 0 {
			response.Error(c, err)
			return
		}
		h.respondPartial(c, payload, err)
		return
	}
	response.Created(c, payload)
}

// respondPartial sends the work committed before err together with err.
func (h *SeatingAdminHandler) respondPartial(c *gin.Context, data interface{}, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, response.Envelope{Data: data, Error: appErr})
}
