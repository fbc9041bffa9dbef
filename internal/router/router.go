package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-grading-api/internal/handler"
	"github.com/noah-isme/sma-grading-api/internal/middleware"
	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/pkg/config"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler        *handler.AuthHandler
	AnalyticsHandler   *handler.AnalyticsHandler
	TermHandler        *handler.TermHandler
	GradeConfigHandler *handler.GradeConfigHandler
	GradeHandler       *handler.GradeHandler
	SheetHandler       *handler.SheetHandler
	StatusHandler      *handler.StatusHandler
	SubmissionHandler  *handler.SubmissionHandler
	ExportHandler      *handler.ExportHandler
	EnrollmentHandler  *handler.EnrollmentHandler
	MetricsHandler     *handler.MetricsHandler
	JWTMiddleware      gin.HandlerFunc
	Audit              middleware.AuditWriter
}

// Register wires the HTTP routes into the gin engine.
func Register(r *gin.Engine, cfg *config.Config, deps Dependencies) {
	if deps.MetricsHandler != nil {
		r.GET("/health", deps.MetricsHandler.Health)
		r.GET("/metrics", deps.MetricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *gin.Context) { c.Next() }
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	if deps.AuthHandler != nil {
		api.POST("/auth/login", deps.AuthHandler.Login)
	}
	// Signed tokens authorise export downloads on their own.
	if deps.ExportHandler != nil {
		api.GET("/exports/download/:token", deps.ExportHandler.SignedDownload)
	}

	secured := api.Group("", jwtMiddleware)
	admins := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)

	if deps.AuthHandler != nil {
		secured.GET("/auth/me", deps.AuthHandler.Me)
	}

	if h := deps.TermHandler; h != nil {
		terms := secured.Group("/terms")
		terms.GET("", h.List)
		terms.GET("/weights", h.Weights)
		terms.GET("/:id", h.Get)
		terms.POST("", admins, middleware.Audit(deps.Audit, "TERM_CREATE", "term"), h.Create)
		terms.PUT("/:id", admins, middleware.Audit(deps.Audit, "TERM_UPDATE", "term"), h.Update)
		terms.DELETE("/:id", admins, middleware.Audit(deps.Audit, "TERM_DELETE", "term"), h.Delete)
	}

	classes := secured.Group("/classes/:classId")
	classTerm := classes.Group("/terms/:termId")

	if h := deps.GradeConfigHandler; h != nil {
		classTerm.GET("/criteria", staff, h.List)
		classTerm.GET("/criteria/weights", staff, h.Weights)
		classTerm.POST("/criteria", staff, middleware.Audit(deps.Audit, "CRITERION_CREATE", "grading_criterion"), h.Create)
		secured.PUT("/criteria/:id", staff, middleware.Audit(deps.Audit, "CRITERION_UPDATE", "grading_criterion"), h.Update)
		secured.DELETE("/criteria/:id", staff, middleware.Audit(deps.Audit, "CRITERION_DELETE", "grading_criterion"), h.Delete)
		secured.POST("/criteria/:id/components", staff, middleware.Audit(deps.Audit, "COMPONENT_CREATE", "grade_component"), h.AddComponent)
		secured.PUT("/components/:id", staff, middleware.Audit(deps.Audit, "COMPONENT_UPDATE", "grade_component"), h.UpdateComponent)
		secured.DELETE("/components/:id", staff, middleware.Audit(deps.Audit, "COMPONENT_DELETE", "grade_component"), h.DeleteComponent)
	}

	if h := deps.GradeHandler; h != nil {
		classes.GET("/scores", staff, h.List)
		classes.POST("/scores", staff, h.Upsert)
		classes.POST("/scores/bulk", staff, h.Bulk)
		classes.DELETE("/scores/:studentId/:componentId", staff, h.Delete)
	}

	if h := deps.SheetHandler; h != nil {
		classTerm.GET("/sheet", staff, h.Sheet)
		classTerm.POST("/recalculate", staff, h.Recalculate)
		classes.GET("/students/:studentId/grades", h.StudentGrades)
		secured.GET("/me/classes/:classId/grades", middleware.RequireRoles(models.RoleStudent), h.OwnGrades)
	}

	if h := deps.AnalyticsHandler; h != nil {
		classTerm.GET("/analytics", staff, h.ClassTerm)
	}

	if h := deps.StatusHandler; h != nil {
		classes.GET("/students/:studentId/statuses", staff, h.List)
		classes.PUT("/students/:studentId/terms/:termId/status", staff, h.Set)
		classes.POST("/students/:studentId/statuses/reset", admins, h.Reset)
	}

	if h := deps.SubmissionHandler; h != nil {
		classTerm.GET("/submission", staff, h.Latest)
		classTerm.POST("/submission", staff, h.Submit)
		secured.GET("/submissions", staff, h.List)
		secured.POST("/submissions/:id/approve", admins, h.Approve)
		secured.POST("/submissions/:id/reject", admins, h.Reject)
	}

	if h := deps.ExportHandler; h != nil {
		classTerm.GET("/export", staff, h.Download)
		classTerm.POST("/exports", staff, h.CreateJob)
		secured.GET("/exports/:id", staff, h.JobStatus)
	}

	if h := deps.EnrollmentHandler; h != nil {
		classes.GET("/enrollments", staff, h.List)
		secured.GET("/me/classes", staff, h.MyClasses)
	}

	if h := deps.MetricsHandler; h != nil {
		secured.GET("/admin/metrics", admins, h.Snapshot)
	}
}
