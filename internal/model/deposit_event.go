package model

import "math/big"

// DepositEvent is a decoded Deposit log from the deposit contract.
type DepositEvent struct {
	From        string
	Amount      *big.Int
	TxID        string
	BlockNumber uint64
	LogIndex    uint
}
