package health

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
)

// criticalJobs maps a job to the consecutive failures it may have before the service is
// unhealthy. Recovery runs once at startup, so a single failure leaves swaps stuck in PROCESSING.
var criticalJobs = map[string]int64{
	consts.JobRecoverInFlight: 1,
	consts.JobExpirePending:   3,
}

// Jobs reports the background job statuses
// @Summary Background jobs health check
// @Tags health
// @Produce json
// @Success 200 {object} JobsHealthResponse
// @Success 206 {object} JobsHealthResponse
// @Failure 503 {object} JobsHealthResponse
// @Router /api/v1/health/jobs [get]
func (h *HealthHandler) Jobs(c *gin.Context) {
	start := time.Now()

	if h.jobStatusManager == nil {
		c.JSON(http.StatusServiceUnavailable, JobsHealthResponse{
			Status:     "unhealthy",
			Timestamp:  start,
			Jobs:       map[string]monitoring.JobStatus{},
			DurationMs: time.Since(start).Milliseconds(),
		})
		return
	}

	jobs := h.jobStatusManager.GetAllJobStatuses()
	summary := h.jobStatusManager.GetJobsSummary()
	status := jobsStatus(jobs, summary)

	response := JobsHealthResponse{
		Status:     status,
		Timestamp:  start,
		Jobs:       jobs,
		Summary:    summary,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if status != "healthy" {
		h.logger.Warn("[Jobs] background jobs not healthy", map[string]string{
			"status":         status,
			"unhealthy_jobs": strconv.Itoa(summary.UnhealthyJobs),
			"stalled_jobs":   strconv.Itoa(summary.StalledJobs),
		})
	}

	switch status {
	case "unhealthy":
		c.JSON(http.StatusServiceUnavailable, response)
	case "degraded":
		c.JSON(http.StatusPartialContent, response)
	default:
		c.JSON(http.StatusOK, response)
	}
}

func jobsStatus(jobs map[string]monitoring.JobStatus, summary monitoring.JobsSummary) string {
	if summary.StalledJobs > 0 {
		return "unhealthy"
	}
	if summary.UnhealthyJobs == 0 {
		return "healthy"
	}

	for name, budget := range criticalJobs {
		job, ok := jobs[name]
		if ok && job.Status == monitoring.JobStatusFailed && job.ConsecutiveFailures >= budget {
			return "unhealthy"
		}
	}
	return "degraded"
}
