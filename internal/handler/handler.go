package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/handler/health"
	"github.com/dwarvesf/faucet-swap-backend/internal/handler/metrics"
	"github.com/dwarvesf/faucet-swap-backend/internal/handler/swap"
	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

type Handler struct {
	SwapHandler    swap.IHandler
	HealthHandler  health.IHealthHandler
	MetricsHandler *metrics.MetricsHandler
}

func New(logger *logger.Logger,
	db *gorm.DB,
	s *store.Store,
	chain health.ChainChecker,
	metricsRegistry *prometheus.Registry,
	httpMetrics *monitoring.HTTPMetrics,
	jobStatusManager *monitoring.JobStatusManager) *Handler {
	return &Handler{
		SwapHandler:    swap.New(db, s, logger, monitoring.NewBusinessMetricsRecorder(httpMetrics)),
		HealthHandler:  health.New(logger, db, chain, jobStatusManager),
		MetricsHandler: metrics.NewMetricsHandler(metricsRegistry, logger),
	}
}
