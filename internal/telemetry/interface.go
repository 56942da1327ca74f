package telemetry

import "context"

type ITelemetry interface {
	ExpireStalePendingRequests(ctx context.Context) error
	RefreshBacklog(ctx context.Context) error
}
