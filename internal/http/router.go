package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/support-allocation/backend/internal/config"
	"github.com/support-allocation/backend/internal/http/handlers"
	"github.com/support-allocation/backend/internal/http/middleware"

	_ "github.com/support-allocation/backend/docs"
)

func Router(cfg config.Config, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	if h.Validator == nil {
		h.Validator = validator.New()
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/requests", h.RequestsList)
		api.POST("/requests", h.RequestCreate)
		api.GET("/resources", h.ResourcesList)
		api.GET("/resources/:id", h.ResourceGet)
		api.GET("/allocations", h.AllocationsList)
		api.GET("/rules", h.RulesList)
		api.GET("/rules/by-category", h.RulesByCategory)
		api.GET("/dashboard/summary", h.DashboardSummary)
		api.GET("/analytics", h.Analytics)
		api.GET("/logs", h.LogsList)
		api.GET("/logs/recent", h.LogsRecent)
		api.GET("/notifications", h.NotificationsList)
		api.GET("/notifications/:id", h.NotificationsForRequester)
		api.POST("/notifications/:id/read", h.NotificationRead)
		api.GET("/scheduler/status", h.SchedulerStatus)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/rules", h.RuleCreate)
		admin.PATCH("/rules/:id", h.RuleUpdate)
		admin.DELETE("/rules/:id", h.RuleDelete)
		admin.POST("/scheduler/start", h.SchedulerStart)
		admin.POST("/scheduler/stop", h.SchedulerStop)
		admin.POST("/feeder/start", h.FeederStart)
		admin.POST("/feeder/stop", h.FeederStop)
		admin.POST("/assistant/chat", h.AssistantChat)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
