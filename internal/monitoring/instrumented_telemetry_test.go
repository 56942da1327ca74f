package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
)

type stubTelemetry struct {
	expireErr  error
	backlogErr error
}

func (s *stubTelemetry) ExpireStalePendingRequests(ctx context.Context) error { return s.expireErr }
func (s *stubTelemetry) RefreshBacklog(ctx context.Context) error             { return s.backlogErr }

func TestInstrumentedTelemetry(t *testing.T) {
	jsm, _ := newTestJobManager(t)

	var heartbeats int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&heartbeats, 1)
	}))
	defer srv.Close()

	cfg := &config.AppConfig{UptimeWebhooks: config.UptimeWebhooksConfig{Maintenance: srv.URL}}
	base := &stubTelemetry{backlogErr: errors.New("swap request store: count by status: boom")}
	it := NewInstrumentedTelemetry(base, jsm, setupTestLogger(), cfg)

	it.ExpireStalePendingRequests()
	it.RefreshBacklog()

	expire, ok := jsm.GetJobStatus(consts.JobExpirePending)
	require.True(t, ok)
	assert.Equal(t, JobStatusSuccess, expire.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&heartbeats))

	backlog, ok := jsm.GetJobStatus(consts.JobRefreshBacklog)
	require.True(t, ok)
	assert.Equal(t, JobStatusFailed, backlog.Status)
	assert.Equal(t, "database", backlog.Metadata["error_type"])
}
