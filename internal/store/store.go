package store

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/store/chaincursor"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/swaprequest"
)

type Store struct {
	SwapRequest swaprequest.IStore
	ChainCursor chaincursor.IStore
}

func New(db *gorm.DB) *Store {
	return &Store{
		SwapRequest: swaprequest.New(),
		ChainCursor: chaincursor.New(),
	}
}
