package monitoring

import (
	"context"
	"time"

	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/telemetry"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/webhook"
)

// InstrumentedTelemetry wraps the maintenance jobs with job monitoring and uptime heartbeats.
type InstrumentedTelemetry struct {
	baseTelemetry telemetry.ITelemetry
	statusManager *JobStatusManager
	logger        *logger.Logger
	config        *config.AppConfig
	webhookClient *webhook.Client
}

func NewInstrumentedTelemetry(
	baseTelemetry telemetry.ITelemetry,
	statusManager *JobStatusManager,
	logger *logger.Logger,
	config *config.AppConfig,
) *InstrumentedTelemetry {
	return &InstrumentedTelemetry{
		baseTelemetry: baseTelemetry,
		statusManager: statusManager,
		logger:        logger,
		config:        config,
		webhookClient: webhook.New(logger),
	}
}

// ExpireStalePendingRequests is a cron entry; failures are recorded by the status manager.
func (it *InstrumentedTelemetry) ExpireStalePendingRequests() {
	it.executeJobWithWebhook(
		consts.JobExpirePending,
		it.baseTelemetry.ExpireStalePendingRequests,
		it.config.UptimeWebhooks.Maintenance,
		2*time.Minute,
	)
}

func (it *InstrumentedTelemetry) RefreshBacklog() {
	it.executeJobWithWebhook(
		consts.JobRefreshBacklog,
		it.baseTelemetry.RefreshBacklog,
		"",
		30*time.Second,
	)
}

func (it *InstrumentedTelemetry) executeJobWithWebhook(jobName string, jobFunc func(ctx context.Context) error, webhookURL string, timeout time.Duration) {
	NewInstrumentedJobWithWebhook(
		jobName,
		jobFunc,
		it.statusManager,
		it.logger,
		timeout,
		it.webhookClient,
		webhookURL,
	).Run()
}
