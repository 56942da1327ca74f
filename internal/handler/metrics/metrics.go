package metrics

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// MetricsHandler exposes the service registry, plus Go runtime and process collectors.
type MetricsHandler struct {
	registry *prometheus.Registry
	logger   *logger.Logger
}

// NewMetricsHandler registers the runtime collectors on registry, so call it once per registry.
func NewMetricsHandler(registry *prometheus.Registry, logger *logger.Logger) *MetricsHandler {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsHandler{
		registry: registry,
		logger:   logger,
	}
}

// Handler serves whatever could be gathered; a failing collector is logged, not fatal.
func (h *MetricsHandler) Handler() gin.HandlerFunc {
	handler := promhttp.InstrumentMetricHandler(h.registry, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		ErrorLog:          gatherErrorLog{logger: h.logger},
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))

	return gin.WrapH(handler)
}

type gatherErrorLog struct {
	logger *logger.Logger
}

func (l gatherErrorLog) Println(v ...interface{}) {
	l.logger.Error("[MetricsHandler][Gather]", map[string]string{
		"error": fmt.Sprint(v...),
	})
}
