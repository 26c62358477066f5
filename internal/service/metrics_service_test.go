package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

func TestMetricsServiceAllocationOutcomes(t *testing.T) {
	m := NewMetricsService()

	m.RecordAllocation("assign", nil)
	m.RecordAllocation("assign", appErrors.Clone(appErrors.ErrSeatAlreadyAssigned, "taken"))
	m.RecordAllocation("assign", errors.New("boom"))
	m.ObserveTx(5*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("assign", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("assign", "SEAT_ALREADY_ASSIGNED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("assign", "INTERNAL_ERROR")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.txDuration))
}

func TestMetricsServiceHandlerExposesSeatingMetrics(t *testing.T) {
	m := NewMetricsService()
	m.RecordHealthReport(models.HealthReport{Status: models.HealthStatusDegraded, TotalSeats: 30, CheckedAt: time.Now()})
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/seating/assign", http.StatusCreated, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "seating_health_status 1")
	assert.Contains(t, body, "seating_seats_total 30")
	assert.Contains(t, body, `http_requests_total{method="POST",path="/api/v1/seating/assign",status="201"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordAllocation("assign", nil)
	m.RecordRepair(models.RepairResult{})
	m.RecordJobFailure("x")
	m.ObserveTx(time.Second, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
