package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/change-gin/internal/config"
	"github.com/mautops/change-gin/internal/service"
	"github.com/mautops/change-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config            *config.Config
	Logger            *logrus.Logger
	DB                *gorm.DB
	HealthChecks      map[string]HealthCheck
	ChangeService     service.ChangeService
	QueryService      service.QueryService
	StatisticsService service.StatisticsService
	Hub               *websocket.Hub
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}

	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))

	// 实时推送为长连接,在请求超时中间件之前注册
	if deps.Hub != nil {
		stream := router.Group("", ErrorHandlerMiddleware())
		stream.GET("/ws/changes/:id", websocket.Handler(deps.Hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins), deps.Logger))
		stream.GET("/sse/changes/:id", SSEHandler(deps.Hub, 0))
	}

	router.Use(TimeoutMiddleware(config.Seconds(cfg.Server.RequestTimeout)))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.HealthChecks)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	changeController := NewChangeController(deps.ChangeService)
	backupController := NewBackupController(deps.ChangeService)
	queryController := NewQueryController(deps.QueryService)
	statisticsController := NewStatisticsController(deps.StatisticsService)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		// 变更管理路由
		changes := v1.Group("/changes")
		{
			changes.POST("", changeController.Create)
			changes.GET("", queryController.ListChanges)
			changes.GET("/:id", changeController.Get)
			changes.GET("/:id/status", changeController.GetStatus)
			changes.GET("/:id/events", queryController.GetEvents)
			changes.GET("/:id/history", queryController.GetHistory)
			changes.GET("/:id/backups", backupController.ListBackups)
			changes.GET("/:id/backups/:file", backupController.GetBackup)
			changes.POST("/:id/submit", changeController.Submit)
			changes.POST("/:id/assess", changeController.AssessImpact)
			changes.POST("/:id/rollback-plan", changeController.CreateRollbackPlan)
			changes.POST("/:id/tests", changeController.RunTests)
			changes.POST("/:id/approvals", changeController.RequestApproval)
			changes.POST("/:id/approve", changeController.Approve)
			changes.POST("/:id/reject", changeController.Reject)
			changes.POST("/:id/deploy", changeController.Deploy)
			changes.POST("/:id/deploy/complete", changeController.CompleteDeployment)
			changes.POST("/:id/rollback", changeController.Rollback)
			changes.POST("/:id/cancel", changeController.Cancel)
		}

		v1.GET("/statistics", statisticsController.GetStatistics)
	}

	return router
}
