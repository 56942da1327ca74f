package telemetry

import (
	"sync"

	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// BacklogRecorder is satisfied by monitoring.SwapMetrics.
type BacklogRecorder interface {
	SetBacklog(status string, count int64)
}

// Telemetry runs the periodic maintenance jobs over the swap request table.
type Telemetry struct {
	db        *gorm.DB
	store     *store.Store
	appConfig *config.AppConfig
	logger    *logger.Logger
	backlog   BacklogRecorder

	expireMutex sync.Mutex
}

func New(db *gorm.DB, store *store.Store, appConfig *config.AppConfig, logger *logger.Logger, backlog BacklogRecorder) *Telemetry {
	return &Telemetry{
		db:        db,
		store:     store,
		appConfig: appConfig,
		logger:    logger,
		backlog:   backlog,
	}
}
