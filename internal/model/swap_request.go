package model

import (
	"strings"
	"time"
)

type SwapRequestStatus string

const (
	SwapRequestStatusPendingDeposit SwapRequestStatus = "PENDING_DEPOSIT"
	SwapRequestStatusProcessing     SwapRequestStatus = "PROCESSING"
	SwapRequestStatusComplete       SwapRequestStatus = "COMPLETE"
	SwapRequestStatusFailed         SwapRequestStatus = "FAILED"
)

// rank orders statuses along the only legal path; COMPLETE and FAILED share the terminal rank.
func (s SwapRequestStatus) rank() int {
	switch s {
	case SwapRequestStatusPendingDeposit:
		return 0
	case SwapRequestStatusProcessing:
		return 1
	case SwapRequestStatusComplete, SwapRequestStatusFailed:
		return 2
	default:
		return -1
	}
}

func (s SwapRequestStatus) Valid() bool {
	return s.rank() >= 0
}

func (s SwapRequestStatus) IsTerminal() bool {
	return s.rank() == 2
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
func (s SwapRequestStatus) CanTransitionTo(next SwapRequestStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

type TargetToken string

const (
	TargetTokenUSDT TargetToken = "USDT"
	TargetTokenWETH TargetToken = "WETH"
)

var SupportedTargetTokens = []TargetToken{TargetTokenUSDT, TargetTokenWETH}

func ParseTargetToken(s string) (TargetToken, bool) {
	token := TargetToken(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range SupportedTargetTokens {
		if t == token {
			return t, true
		}
	}
	return "", false
}

// SwapRequest is a user's registered intent to swap the base asset for a target token.
// Amount columns hold base-10 integers in smallest units, except AmountAlph which is the
// human-readable amount the user declared.
type SwapRequest struct {
	ID                 string            `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	UserAddress        string            `json:"user_address" gorm:"column:user_address;type:varchar(64);not null;index:idx_swap_requests_user_status_ts,priority:1"`
	TargetToken        TargetToken       `json:"target_token" gorm:"column:target_token;type:varchar(16);not null"`
	AmountAlph         string            `json:"amount_alph" gorm:"column:amount_alph;type:varchar(78);not null"`
	DepositAmountAttos *string           `json:"deposit_amount_attos,omitempty" gorm:"column:deposit_amount_attos;type:varchar(78)"`
	AmountTargetToken  *string           `json:"amount_target_token,omitempty" gorm:"column:amount_target_token;type:varchar(78)"`
	Status             SwapRequestStatus `json:"status" gorm:"column:status;type:varchar(32);not null;index;index:idx_swap_requests_user_status_ts,priority:2"`
	Timestamp          time.Time         `json:"timestamp" gorm:"column:timestamp;not null;index:idx_swap_requests_user_status_ts,priority:3"`
	DepositTxID        *string           `json:"deposit_tx_id,omitempty" gorm:"column:deposit_tx_id;type:varchar(66);uniqueIndex"`
	FaucetTxID         *string           `json:"faucet_tx_id,omitempty" gorm:"column:faucet_tx_id;type:varchar(66)"`
	FailureReason      *string           `json:"failure_reason,omitempty" gorm:"column:failure_reason;type:text"`

	// Set right before the faucet call so a restart can look for the payout on chain.
	PayoutSubmittedAt *time.Time `json:"-" gorm:"column:payout_submitted_at"`
	PayoutFromBlock   *uint64    `json:"-" gorm:"column:payout_from_block"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (SwapRequest) TableName() string {
	return "swap_requests"
}

// HasPayoutMarker reports whether a faucet submission may already have been sent.
func (r *SwapRequest) HasPayoutMarker() bool {
	return r.PayoutSubmittedAt != nil
}

// StringPtr is a small helper for the nullable text columns.
func StringPtr(s string) *string {
	return &s
}
