package chainrpc

import (
	"context"
	"math/big"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
)

type IChainRPC interface {
	LatestBlock(ctx context.Context) (uint64, error)
	// FetchDeposits returns Deposit events in [fromBlock, toBlock] ordered by block and log index.
	FetchDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]model.DepositEvent, error)
	// Withdraw calls faucet.withdraw(recipient, amount) with dust attached and waits for the receipt.
	Withdraw(ctx context.Context, faucetAddress, recipient string, amount, dust *big.Int) (string, error)
	// FindWithdrawal looks for a Withdrawal(recipient, amount) event emitted at or after fromBlock.
	FindWithdrawal(ctx context.Context, faucetAddress, recipient string, amount *big.Int, fromBlock uint64) (string, bool, error)
}
