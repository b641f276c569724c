package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-supervision-api/api/swagger"
	"github.com/noah-isme/sma-supervision-api/internal/handler"
	"github.com/noah-isme/sma-supervision-api/internal/middleware"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/pkg/config"
	"github.com/noah-isme/sma-supervision-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-supervision-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-supervision-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.metrics, a.state)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "revision": a.state.Revision()})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	schoolHandler := handler.NewSchoolHandler(a.schools, a.options)
	exportHandler := handler.NewExportHandler(a.exports)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/schools", schoolHandler.List)
	api.GET("/exports/download/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))
	audit := logr.Named("audit")

	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/switch", authHandler.Switch)
	secured.GET("/system/metrics", middleware.RequirePermission(models.PermManageData), metricsHandler.Snapshot)

	schools := secured.Group("")
	schools.POST("/schools", middleware.RequirePermission(models.PermManageData), middleware.Audit(audit, "create", "school"), schoolHandler.Add)
	schools.POST("/schools/rename", middleware.RequirePermission(models.PermManageData), middleware.Audit(audit, "rename", "school"), schoolHandler.Rename)
	schools.GET("/options/:name", schoolHandler.GetOptions)
	schools.PUT("/options/:name", middleware.RequirePermission(models.PermManageData), schoolHandler.SetOptions)

	teacherHandler := handler.NewTeacherHandler(a.teachers)
	teachers := secured.Group("/teachers")
	teachers.GET("", teacherHandler.List)
	teachers.GET("/:id", teacherHandler.Get)
	teachers.POST("", teacherHandler.Create)
	teachers.PUT("/:id", teacherHandler.Update)
	teachers.PATCH("/:id", teacherHandler.Patch)
	teachers.DELETE("/:id", teacherHandler.Delete)

	reportHandler := handler.NewReportHandler(a.reports)
	reports := secured.Group("/reports")
	reports.GET("", reportHandler.List)
	reports.GET("/:id", reportHandler.Get)
	reports.POST("", reportHandler.Create)
	reports.PUT("/:id", reportHandler.Update)
	reports.DELETE("/:id", reportHandler.Delete)
	reports.POST("/:id/bookmark", reportHandler.ToggleBookmark)

	criteriaHandler := handler.NewCriteriaHandler(a.criteria)
	criteria := secured.Group("/criteria")
	criteria.GET("/custom", criteriaHandler.ListCustom)
	criteria.POST("/custom", criteriaHandler.AddCustom)
	criteria.DELETE("/custom/:id", criteriaHandler.DeleteCustom)
	criteria.GET("/hidden", criteriaHandler.ListHidden)
	criteria.POST("/hidden", criteriaHandler.Hide)
	criteria.POST("/hidden/restore", criteriaHandler.Unhide)
	templates := secured.Group("/templates")
	templates.GET("", criteriaHandler.ListTemplates)
	templates.POST("", criteriaHandler.CreateTemplate)
	templates.PUT("/:id", criteriaHandler.UpdateTemplate)
	templates.DELETE("/:id", criteriaHandler.DeleteTemplate)

	syllabusHandler := handler.NewSyllabusHandler(a.syllabus)
	syllabus := secured.Group("/syllabus")
	syllabus.GET("/plans", syllabusHandler.ListPlans)
	syllabus.GET("/plans/:id", syllabusHandler.GetPlan)
	syllabus.POST("/plans", syllabusHandler.CreatePlan)
	syllabus.PUT("/plans/:id", syllabusHandler.UpdatePlan)
	syllabus.DELETE("/plans/:id", syllabusHandler.DeletePlan)
	syllabus.GET("/coverage", syllabusHandler.ListCoverage)
	syllabus.GET("/coverage/:id", syllabusHandler.GetCoverage)
	syllabus.POST("/coverage", syllabusHandler.CreateCoverage)
	syllabus.PUT("/coverage/:id", syllabusHandler.UpdateCoverage)
	syllabus.DELETE("/coverage/:id", syllabusHandler.DeleteCoverage)

	progressHandler := handler.NewProgressHandler(a.meetings, a.plans)
	meetings := secured.Group("/meetings")
	meetings.GET("/summary", progressHandler.MeetingSummary)
	meetings.PATCH("/:id/outcomes/:outcomeId", progressHandler.UpdateOutcome)
	handler.NewActivityHandler[models.Meeting](a.meetings, "meeting").Register(meetings)

	plans := secured.Group("/plans")
	plans.GET("/:id/summary", progressHandler.PlanSummary)
	plans.PATCH("/:id/entries/:entryId", progressHandler.UpdateEntry)
	handler.NewActivityHandler[models.SupervisoryPlanWrapper](a.plans, "supervisory plan").Register(plans)

	handler.NewActivityHandler[models.Task](a.tasks, "task").Register(secured.Group("/tasks"))
	handler.NewActivityHandler[models.PeerVisit](a.visits, "peer visit").Register(secured.Group("/peer-visits"))
	handler.NewActivityHandler[models.DeliverySheet](a.delivery, "delivery sheet").Register(secured.Group("/delivery-sheets"))
	handler.NewActivityHandler[models.BulkMessage](a.messages, "bulk message").Register(secured.Group("/bulk-messages"))

	userHandler := handler.NewUserHandler(a.users)
	users := secured.Group("/users", middleware.RequirePermission(models.PermManageUsers))
	users.GET("", userHandler.List)
	users.POST("", middleware.Audit(audit, "create", "user"), userHandler.Create)
	users.POST("/generate-code", userHandler.GenerateCode)
	users.PUT("/:id", middleware.Audit(audit, "update", "user"), userHandler.Update)
	users.DELETE("/:id", middleware.Audit(audit, "delete", "user"), userHandler.Delete)

	dashboardHandler := handler.NewDashboardHandler(a.dashboard)
	dashboard := secured.Group("/dashboard")
	dashboard.GET("", dashboardHandler.Overview)
	dashboard.GET("/aggregate", dashboardHandler.Aggregate)
	dashboard.GET("/analysis", dashboardHandler.Analysis)
	dashboard.GET("/performance", dashboardHandler.Performance)

	secured.POST("/exports", exportHandler.Export)

	backupHandler := handler.NewBackupHandler(a.backups)
	backups := secured.Group("/backups", middleware.RequirePermission(models.PermManageData))
	backups.GET("/export", backupHandler.Export)
	backups.POST("/import", middleware.Audit(audit, "import", "backup"), backupHandler.Import)
	backups.GET("/history", backupHandler.History)
	backups.POST("/history/:id/restore", middleware.Audit(audit, "restore", "backup"), backupHandler.Restore)

	importHandler := handler.NewImportHandler(a.imports)
	imports := secured.Group("/imports")
	imports.POST("/teachers", importHandler.Submit)
	imports.GET("/:id", importHandler.Status)

	return r
}
