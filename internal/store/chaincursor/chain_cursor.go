package chaincursor

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
)

type Store struct {
}

func New() IStore {
	return &Store{}
}

func (s *Store) Get(tx *gorm.DB, name string) (uint64, bool, error) {
	var cursor model.ChainCursor
	err := tx.Where("name = ?", name).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get chain cursor %s: %w", name, err)
	}
	return cursor.BlockNumber, true, nil
}

// Upsert never moves a cursor backwards.
func (s *Store) Upsert(tx *gorm.DB, name string, blockNumber uint64) error {
	cursor := model.ChainCursor{
		Name:        name,
		BlockNumber: blockNumber,
		UpdatedAt:   time.Now().UTC(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "block_number"}, Value: gorm.Expr("CASE WHEN excluded.block_number > chain_cursors.block_number THEN excluded.block_number ELSE chain_cursors.block_number END")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&cursor).Error
	if err != nil {
		return fmt.Errorf("upsert chain cursor %s: %w", name, err)
	}
	return nil
}
