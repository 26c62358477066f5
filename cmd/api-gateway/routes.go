package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/handler"
	"github.com/noah-isme/sma-seating-api/internal/middleware"
	"github.com/noah-isme/sma-seating-api/internal/models"
	"github.com/noah-isme/sma-seating-api/pkg/config"
)

type routeDeps struct {
	tokens  middleware.TokenValidator
	logger  *zap.Logger
	seats   *handler.SeatHandler
	seating *handler.SeatingHandler
	admin   *handler.SeatingAdminHandler
	ops     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	staff := []string{string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleTeacher)}
	staffOrSelf := append([]string{"SELF"}, staff...)

	seats := api.Group("/seats")
	seats.GET("", middleware.RBAC(staff...), deps.seats.List)
	seats.GET("/:id", middleware.RBAC(staff...), deps.seats.Get)
	seats.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), deps.seats.Create)
	seats.PATCH("/:id/active", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), deps.seats.SetActive)

	seating := api.Group("/seating")
	seating.POST("/assign", middleware.RBAC(staff...), deps.seating.Assign)
	seating.POST("/unassign", middleware.RBAC(staff...), deps.seating.Unassign)
	seating.GET("/assignments", middleware.RBAC(staff...), deps.seating.List)
	seating.GET("/stats", middleware.RBAC(staff...), deps.seating.Stats)
	seating.GET("/seats/:seatId", middleware.RBAC(staff...), deps.seating.GetBySeat)
	seating.GET("/seats/:seatId/history", middleware.RBAC(staff...), deps.seating.SeatHistory)
	seating.GET("/students/:studentId", middleware.RBAC(staffOrSelf...), deps.seating.GetByStudent)
	seating.GET("/students/:studentId/history", middleware.RBAC(staffOrSelf...), deps.seating.StudentHistory)

	admin := api.Group("/admin/seating")
	admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/health", deps.admin.Health)
	admin.GET("/health/export", deps.admin.ExportHealth)
	admin.POST("/repair", middleware.Audit(deps.logger, "seating.repair"), deps.admin.Repair)
	admin.POST("/seats/provision", middleware.Audit(deps.logger, "seating.provision"), deps.admin.Provision)
	admin.POST("/bulk-assign", middleware.Audit(deps.logger, "seating.bulk_assign"), deps.admin.BulkAssign)
	admin.POST("/initialize", middleware.Audit(deps.logger, "seating.initialize"), deps.admin.Initialize)
}
