package health

import (
	"context"

	"github.com/gin-gonic/gin"
)

// IHealthHandler defines the interface for health check handlers
type IHealthHandler interface {
	Basic(c *gin.Context)
	Database(c *gin.Context)
	External(c *gin.Context)
	Jobs(c *gin.Context)
}

// ChainChecker reports the chain head through the circuit breaker.
type ChainChecker interface {
	HealthCheck(ctx context.Context) (uint64, error)
}
