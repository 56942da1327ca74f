package model

import "time"

// ChainCursor remembers the last block height whose events were fully handled.
type ChainCursor struct {
	Name        string    `gorm:"column:name;type:varchar(64);primaryKey"`
	BlockNumber uint64    `gorm:"column:block_number;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (ChainCursor) TableName() string {
	return "chain_cursors"
}
