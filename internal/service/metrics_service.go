package service

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

var healthStatusValue = map[models.HealthStatus]float64{
	models.HealthStatusHealthy:   0,
	models.HealthStatusDegraded:  1,
	models.HealthStatusUnhealthy: 2,
}

// MetricsService owns the Prometheus registry for the seating service.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	txDuration      *prometheus.HistogramVec
	allocations     *prometheus.CounterVec
	healthStatus    prometheus.Gauge
	healthIssues    *prometheus.GaugeVec
	healthSeats     prometheus.Gauge
	healthCheckedAt prometheus.Gauge
	repairs         *prometheus.CounterVec
	jobFailures     *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seating_tx_duration_seconds",
			Help:    "Duration of seating store transactions",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_allocations_total",
			Help: "Allocation operations by outcome code",
		}, []string{"operation", "outcome"}),
		healthStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seating_health_status",
			Help: "Last consistency status (0 healthy, 1 degraded, 2 unhealthy)",
		}),
		healthIssues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "seating_consistency_issues",
			Help: "Issues found by the last consistency check",
		}, []string{"type"}),
		healthSeats: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seating_seats_total",
			Help: "Seats scanned by the last consistency check",
		}),
		healthCheckedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seating_last_health_check_timestamp_seconds",
			Help: "Unix time of the last consistency check",
		}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_repairs_total",
			Help: "Auto-repair results",
		}, []string{"type", "action", "success"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_job_failures_total",
			Help: "Background jobs that exhausted their retries",
		}, []string{"type"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.txDuration, m.allocations,
		m.healthStatus, m.healthIssues, m.healthSeats, m.healthCheckedAt,
		m.repairs, m.jobFailures, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTx matches repository.TxObserver.
func (m *MetricsService) ObserveTx(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(outcomeLabel(err)).Observe(duration.Seconds())
}

// RecordAllocation counts an allocation call labelled by its error code.
func (m *MetricsService) RecordAllocation(operation string, err error) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(operation, outcomeLabel(err)).Inc()
}

// RecordHealthReport publishes the latest auditor findings.
func (m *MetricsService) RecordHealthReport(report models.HealthReport) {
	if m == nil {
		return
	}
	m.healthStatus.Set(healthStatusValue[report.Status])
	m.healthSeats.Set(float64(report.TotalSeats))
	m.healthCheckedAt.Set(float64(report.CheckedAt.Unix()))
	for issueType, count := range report.CountByType() {
		m.healthIssues.WithLabelValues(string(issueType)).Set(float64(count))
	}
}

// RecordRepair counts a single repair result.
func (m *MetricsService) RecordRepair(result models.RepairResult) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(string(result.Type), string(result.Action), fmt.Sprintf("%t", result.Success)).Inc()
}

// RecordJobFailure counts a background job that gave up.
func (m *MetricsService) RecordJobFailure(jobType string) {
	if m == nil {
		return
	}
	m.jobFailures.WithLabelValues(jobType).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return appErrors.ErrInternal.Code
}
