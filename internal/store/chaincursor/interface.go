package chaincursor

import (
	"gorm.io/gorm"
)

type IStore interface {
	// Get returns found=false when the cursor has never been written.
	Get(tx *gorm.DB, name string) (blockNumber uint64, found bool, err error)
	Upsert(tx *gorm.DB, name string, blockNumber uint64) error
}
