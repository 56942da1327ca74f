package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/faucet-swap-backend/internal/handler"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, appConfig *config.AppConfig, logger *logger.Logger) {
	v1 := r.Group("/api/v1")

	swap := v1.Group("/swap")
	{
		swap.POST("", h.SwapHandler.CreateSwapRequest)
		swap.GET("", h.SwapHandler.ListSwapRequests)
		swap.GET("/:id", h.SwapHandler.GetSwapRequest)
	}

	health := v1.Group("/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}

	r.GET("/healthz", h.HealthHandler.Basic)
	r.GET("/metrics", h.MetricsHandler.Handler())
}
