package swaprequest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
)

// Fields is a partial update; nil members are left unchanged.
type Fields struct {
	DepositTxID        *string
	DepositAmountAttos *string
	AmountTargetToken  *string
	FaucetTxID         *string
	FailureReason      *string
	PayoutSubmittedAt  *time.Time
	PayoutFromBlock    *uint64
}

func (f Fields) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if f.DepositTxID != nil {
		cols["deposit_tx_id"] = *f.DepositTxID
	}
	if f.DepositAmountAttos != nil {
		cols["deposit_amount_attos"] = *f.DepositAmountAttos
	}
	if f.AmountTargetToken != nil {
		cols["amount_target_token"] = *f.AmountTargetToken
	}
	if f.FaucetTxID != nil {
		cols["faucet_tx_id"] = *f.FaucetTxID
	}
	if f.FailureReason != nil {
		cols["failure_reason"] = *f.FailureReason
	}
	if f.PayoutSubmittedAt != nil {
		cols["payout_submitted_at"] = f.PayoutSubmittedAt.UTC()
	}
	if f.PayoutFromBlock != nil {
		cols["payout_from_block"] = *f.PayoutFromBlock
	}
	return cols
}

type Store struct {
}

func New() IStore {
	return &Store{}
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (s *Store) Create(tx *gorm.DB, swapRequest *model.SwapRequest) (*model.SwapRequest, error) {
	if swapRequest.ID == "" {
		swapRequest.ID = uuid.NewString()
	}
	if swapRequest.Timestamp.IsZero() {
		swapRequest.Timestamp = time.Now()
	}
	swapRequest.Timestamp = swapRequest.Timestamp.UTC()
	swapRequest.UserAddress = normalizeAddress(swapRequest.UserAddress)
	swapRequest.Status = model.SwapRequestStatusPendingDeposit
	swapRequest.DepositTxID = nil
	swapRequest.DepositAmountAttos = nil
	swapRequest.AmountTargetToken = nil
	swapRequest.FaucetTxID = nil
	swapRequest.FailureReason = nil

	if err := tx.Create(swapRequest).Error; err != nil {
		return nil, storageErr("create", err)
	}
	return swapRequest, nil
}

func (s *Store) Get(tx *gorm.DB, id string) (*model.SwapRequest, error) {
	var swapRequest model.SwapRequest
	err := tx.Where("id = ?", id).First(&swapRequest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return &swapRequest, nil
}

func (s *Store) GetByDepositTx(tx *gorm.DB, depositTxID string) (*model.SwapRequest, error) {
	var swapRequest model.SwapRequest
	err := tx.Where("deposit_tx_id = ?", depositTxID).First(&swapRequest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get by deposit tx", err)
	}
	return &swapRequest, nil
}

func (s *Store) Update(tx *gorm.DB, id string, fields Fields) error {
	cols := fields.columns()
	if len(cols) == 0 {
		return nil
	}

	res := tx.Model(&model.SwapRequest{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return storageErr("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Transition(tx *gorm.DB, id string, from, to model.SwapRequestStatus, fields Fields) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	cols := fields.columns()
	cols["status"] = to

	res := tx.Model(&model.SwapRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return storageErr("transition", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&model.SwapRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return storageErr("transition", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s is no longer %s", ErrStaleStatus, id, from)
}

func (s *Store) FindOldestPendingForUser(tx *gorm.DB, userAddress string) (*model.SwapRequest, error) {
	var swapRequests []model.SwapRequest
	err := tx.Where("user_address = ? AND status = ?", normalizeAddress(userAddress), model.SwapRequestStatusPendingDeposit).
		Order("timestamp ASC").
		Order("created_at ASC").
		Limit(1).
		Find(&swapRequests).Error
	if err != nil {
		return nil, storageErr("find oldest pending", err)
	}
	if len(swapRequests) == 0 {
		return nil, nil
	}
	return &swapRequests[0], nil
}

func (s *Store) ListAll(tx *gorm.DB) ([]model.SwapRequest, error) {
	var swapRequests []model.SwapRequest
	if err := tx.Order("timestamp DESC").Find(&swapRequests).Error; err != nil {
		return nil, storageErr("list", err)
	}
	return swapRequests, nil
}

func (s *Store) ListByStatus(tx *gorm.DB, status model.SwapRequestStatus) ([]model.SwapRequest, error) {
	var swapRequests []model.SwapRequest
	err := tx.Where("status = ?", status).Order("timestamp ASC").Find(&swapRequests).Error
	if err != nil {
		return nil, storageErr("list by status", err)
	}
	return swapRequests, nil
}

func (s *Store) CountByStatus(tx *gorm.DB) (map[model.SwapRequestStatus]int64, error) {
	var rows []struct {
		Status model.SwapRequestStatus
		Count  int64
	}
	err := tx.Model(&model.SwapRequest{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count by status", err)
	}

	counts := make(map[model.SwapRequestStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *Store) ExpirePendingBefore(tx *gorm.DB, cutoff time.Time, reason string) (int64, error) {
	res := tx.Model(&model.SwapRequest{}).
		Where("status = ? AND timestamp < ?", model.SwapRequestStatusPendingDeposit, cutoff.UTC()).
		Updates(map[string]interface{}{
			"status":         model.SwapRequestStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return 0, storageErr("expire pending", res.Error)
	}
	return res.RowsAffected, nil
}
