package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/storetest"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

type stubChain struct {
	head uint64
	err  error
}

func (s stubChain) HealthCheck(ctx context.Context) (uint64, error) {
	return s.head, s.err
}

func serve(t *testing.T, path string, handle gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET(path, handle)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler_Basic(t *testing.T) {
	handler := &HealthHandler{}

	w := serve(t, "/healthz", handler.Basic)

	assert.Equal(t, http.StatusOK, w.Code)
	var response BasicHealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Message)
}

func TestHealthHandler_Database(t *testing.T) {
	t.Run("nil db", func(t *testing.T) {
		handler := &HealthHandler{logger: logger.New("test")}

		w := serve(t, "/health/db", handler.Database)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"].Error, "database connection not available")
	})

	t.Run("reachable db", func(t *testing.T) {
		handler := New(logger.New("test"), storetest.NewSQLite(t), nil, nil).(*HealthHandler)

		w := serve(t, "/health/db", handler.Database)

		assert.Equal(t, http.StatusOK, w.Code)
		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "healthy", response.Checks["database"].Status)
		assert.Contains(t, response.Checks["database"].Metadata, "connection_pool")
	})
}

func TestHealthHandler_External(t *testing.T) {
	tests := []struct {
		name       string
		chain      ChainChecker
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{"no client", nil, http.StatusServiceUnavailable, "unhealthy", "chain rpc not available"},
		{"node down", stubChain{err: errors.New("circuit breaker is open")}, http.StatusServiceUnavailable, "unhealthy", "circuit breaker is open"},
		{"node up", stubChain{head: 1234}, http.StatusOK, "healthy", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &HealthHandler{logger: logger.New("test"), chain: tt.chain}

			w := serve(t, "/health/external", handler.External)

			assert.Equal(t, tt.wantCode, w.Code)
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.wantStatus, response.Status)
			check := response.Checks["chain_rpc"]
			assert.Equal(t, tt.wantStatus, check.Status)
			if tt.wantError != "" {
				assert.Contains(t, check.Error, tt.wantError)
			} else {
				assert.Equal(t, float64(1234), check.Metadata["head_block"])
			}
		})
	}
}

func newJobManager(t *testing.T) *monitoring.JobStatusManager {
	t.Helper()
	metrics := monitoring.NewBackgroundJobMetrics()
	metrics.MustRegister(prometheus.NewRegistry())
	jsm := monitoring.NewJobStatusManager(logger.New("test"), metrics)
	t.Cleanup(jsm.Stop)
	return jsm
}

func TestHealthHandler_Jobs(t *testing.T) {
	t.Run("no manager", func(t *testing.T) {
		handler := &HealthHandler{logger: logger.New("test")}

		w := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("healthy jobs", func(t *testing.T) {
		jsm := newJobManager(t)
		job := monitoring.NewInstrumentedJob(consts.JobRefreshBacklog, func(ctx context.Context) error { return nil }, jsm, logger.New("test"), time.Second)
		require.NoError(t, job.Execute())
		handler := &HealthHandler{logger: logger.New("test"), jobStatusManager: jsm}

		w := serve(t, "/health/jobs", handler.Jobs)

		assert.Equal(t, http.StatusOK, w.Code)
		var response JobsHealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, 1, response.Summary.TotalJobs)
	})

	t.Run("critical job failing repeatedly", func(t *testing.T) {
		jsm := newJobManager(t)
		job := monitoring.NewInstrumentedJob(consts.JobExpirePending, func(ctx context.Context) error { return errors.New("boom") }, jsm, logger.New("test"), time.Second)
		for i := 0; i < 3; i++ {
			assert.Error(t, job.Execute())
		}
		handler := &HealthHandler{logger: logger.New("test"), jobStatusManager: jsm}

		w := serve(t, "/health/jobs", handler.Jobs)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response JobsHealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "unhealthy", response.Status)
	})

	t.Run("single recovery failure is unhealthy", func(t *testing.T) {
		jsm := newJobManager(t)
		job := monitoring.NewInstrumentedJob(consts.JobRecoverInFlight, func(ctx context.Context) error {
			return errors.New("2 processing swap requests need manual reconciliation")
		}, jsm, logger.New("test"), time.Second)
		assert.Error(t, job.Execute())
		handler := &HealthHandler{logger: logger.New("test"), jobStatusManager: jsm}

		w := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("non-critical failure degrades", func(t *testing.T) {
		jsm := newJobManager(t)
		job := monitoring.NewInstrumentedJob(consts.JobRefreshBacklog, func(ctx context.Context) error { return errors.New("boom") }, jsm, logger.New("test"), time.Second)
		assert.Error(t, job.Execute())
		handler := &HealthHandler{logger: logger.New("test"), jobStatusManager: jsm}

		w := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusPartialContent, w.Code)
	})
}
