package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// HealthHandler implements IHealthHandler interface
type HealthHandler struct {
	logger           *logger.Logger
	db               *gorm.DB
	chain            ChainChecker
	jobStatusManager *monitoring.JobStatusManager
}

func New(logger *logger.Logger, db *gorm.DB, chain ChainChecker, jobStatusManager *monitoring.JobStatusManager) IHealthHandler {
	return &HealthHandler{
		logger:           logger,
		db:               db,
		chain:            chain,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the basic health check endpoint (/healthz)
// @Summary Basic health check
// @Tags health
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{Message: "ok"})
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	start := time.Now()

	check := h.checkDatabase(requestContext(c))
	respond(c, start, map[string]HealthCheck{"database": check})
}

// External handles the chain node health check endpoint
// @Summary External dependencies health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(requestContext(c), 10*time.Second)
	defer cancel()

	check := h.checkChainRPC(ctx)
	respond(c, start, map[string]HealthCheck{"chain_rpc": check})
}

func requestContext(c *gin.Context) context.Context {
	if c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

func respond(c *gin.Context, start time.Time, checks map[string]HealthCheck) {
	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  start,
		Checks:     checks,
		DurationMs: time.Since(start).Milliseconds(),
	}
	for _, check := range checks {
		if check.Status != "healthy" {
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}
	c.JSON(http.StatusOK, response)
}

// checkDatabase performs database health validation
func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Metadata: make(map[string]interface{}),
	}

	if h.db == nil {
		check.Status = "unhealthy"
		check.Error = "database connection not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		check.Status = "unhealthy"
		check.Error = fmt.Sprintf("failed to get underlying database: %v", err)
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		check.Status = "unhealthy"
		if pingCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = err.Error()
		}
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	stats := sqlDB.Stats()

	check.Status = "healthy"
	check.Latency = time.Since(start).Milliseconds()
	check.Metadata["driver"] = h.db.Dialector.Name()
	check.Metadata["connection_pool"] = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
	}

	return check
}

// checkChainRPC asks the node for its head block through the circuit breaker.
func (h *HealthHandler) checkChainRPC(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Metadata: make(map[string]interface{}),
	}

	if h.chain == nil {
		check.Status = "unhealthy"
		check.Error = "chain rpc not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	head, err := h.chain.HealthCheck(ctx)
	check.Latency = time.Since(start).Milliseconds()
	if err != nil {
		check.Status = "unhealthy"
		check.Error = err.Error()
		return check
	}

	check.Status = "healthy"
	check.Metadata["head_block"] = head
	return check
}
