package consts

import "math/big"

// BaseAssetDecimals is the decimal scale of the native asset users deposit.
const BaseAssetDecimals = 18

// DustAttos is attached as msg.value to every faucet withdrawal (0.001 of the base asset).
var DustAttos = big.NewInt(1_000_000_000_000_000)

const (
	DepositListenerCursor = "deposit_listener"
)

// Background job names, shared by the scheduler and the health endpoint.
const (
	JobExpirePending   = "expire_pending_swap_requests"
	JobRefreshBacklog  = "refresh_swap_backlog"
	JobRecoverInFlight = "recover_processing_swap_requests"
)
