package swaprequest

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
)

type IStore interface {
	// Create persists a new intent in PENDING_DEPOSIT and assigns its id and timestamp.
	Create(tx *gorm.DB, swapRequest *model.SwapRequest) (*model.SwapRequest, error)
	Get(tx *gorm.DB, id string) (*model.SwapRequest, error)
	// Update writes the non-nil fields without touching status.
	Update(tx *gorm.DB, id string, fields Fields) error
	// Transition moves a request from one status to a later one only if it is still in from.
	Transition(tx *gorm.DB, id string, from, to model.SwapRequestStatus, fields Fields) error
	// FindOldestPendingForUser returns nil without error when the user has no pending intent.
	FindOldestPendingForUser(tx *gorm.DB, userAddress string) (*model.SwapRequest, error)
	GetByDepositTx(tx *gorm.DB, depositTxID string) (*model.SwapRequest, error)
	ListAll(tx *gorm.DB) ([]model.SwapRequest, error)
	ListByStatus(tx *gorm.DB, status model.SwapRequestStatus) ([]model.SwapRequest, error)
	CountByStatus(tx *gorm.DB) (map[model.SwapRequestStatus]int64, error)
	ExpirePendingBefore(tx *gorm.DB, cutoff time.Time, reason string) (int64, error)
}
