package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-seating-api/internal/models"
	"github.com/noah-isme/sma-seating-api/internal/service"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.seen = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/seating/students/:studentId", handlers...)
	return router
}

func perform(router *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTRequiresBearerToken(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := newRouter(JWT(stub))

	assert.Equal(t, http.StatusUnauthorized, perform(router, "/seating/students/s1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(router, "/seating/students/s1", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(router, "/seating/students/s1", "Bearer ").Code)

	rec := perform(router, "/seating/students/s1", "Bearer good-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "good-token", stub.seen)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	stub := &validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	router := newRouter(JWT(stub))

	rec := perform(router, "/seating/students/s1", "Bearer expired")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestRBAC(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		path   string
		want   int
	}{
		{"admin allowed", &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "/seating/students/s1", http.StatusNoContent},
		{"student self", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, "/seating/students/s1", http.StatusNoContent},
		{"student other", &models.JWTClaims{UserID: "s2", Role: models.RoleStudent}, "/seating/students/s1", http.StatusForbidden},
		{"teacher denied", &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, "/seating/students/s1", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(JWT(&validatorStub{claims: tc.claims}), RBAC(string(models.RoleAdmin), "SELF"))
			assert.Equal(t, tc.want, perform(router, tc.path, "Bearer x").Code)
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	router := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, perform(router, "/seating/students/s1", "").Code)
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	metrics := service.NewMetricsService()
	router := newRouter(Metrics(metrics))

	perform(router, "/seating/students/s9", "")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `path="/seating/students/:studentId"`)
	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsMiddlewareCollapsesUnknownPaths(t *testing.T) {
	metrics := service.NewMetricsService()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/seating/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(router, "/wp-admin/install.php", "")
	perform(router, "/.env", "")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, "wp-admin")
}

func TestAuditLogsActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	claims := &models.JWTClaims{UserID: "admin-7", Role: models.RoleSuperAdmin}
	router := newRouter(JWT(&validatorStub{claims: claims}), Audit(zap.New(core), "repair"))

	perform(router, "/seating/students/s1", "Bearer x")

	entries := logs.FilterMessage("seating maintenance request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "repair", fields["action"])
	assert.Equal(t, "admin-7", fields["user_id"])
	assert.Equal(t, int64(http.StatusNoContent), fields["status"])
	assert.True(t, strings.HasPrefix(entries[0].LoggerName, "audit"))
}
