package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
)

const expiredReason = "expired: no matching deposit before the pending TTL"

// ExpireStalePendingRequests fails PENDING_DEPOSIT intents older than the configured TTL.
// A zero TTL disables expiry.
func (t *Telemetry) ExpireStalePendingRequests(ctx context.Context) error {
	// Prevent concurrent executions
	t.expireMutex.Lock()
	defer t.expireMutex.Unlock()

	ttl := t.appConfig.Reconciler.PendingTTL
	if ttl <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-ttl)
	expired, err := t.store.SwapRequest.ExpirePendingBefore(t.db.WithContext(ctx), cutoff, expiredReason)
	if err != nil {
		t.logger.Error("[ExpireStalePendingRequests][ExpirePendingBefore]", map[string]string{
			"error": err.Error(),
		})
		return err
	}

	if expired > 0 {
		t.logger.Info("[ExpireStalePendingRequests] expired pending swap requests", map[string]string{
			"count":  strconv.FormatInt(expired, 10),
			"cutoff": cutoff.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// RefreshBacklog publishes the number of swap requests in each status.
func (t *Telemetry) RefreshBacklog(ctx context.Context) error {
	counts, err := t.store.SwapRequest.CountByStatus(t.db.WithContext(ctx))
	if err != nil {
		t.logger.Error("[RefreshBacklog][CountByStatus]", map[string]string{
			"error": err.Error(),
		})
		return err
	}

	statuses := []model.SwapRequestStatus{
		model.SwapRequestStatusPendingDeposit,
		model.SwapRequestStatusProcessing,
		model.SwapRequestStatusComplete,
		model.SwapRequestStatusFailed,
	}
	for _, status := range statuses {
		t.backlog.SetBacklog(string(status), counts[status])
	}

	if stuck := counts[model.SwapRequestStatusProcessing]; stuck > 0 {
		t.logger.Debug(fmt.Sprintf("[RefreshBacklog] %d swap requests in flight", stuck))
	}
	return nil
}
