package store

import (
	"context"

	"gorm.io/gorm"
)

// DBRepo owns the shared connection pool handed to every store method.
type DBRepo interface {
	DB() *gorm.DB
	Ping(ctx context.Context) error
	Close() error
}

type repo struct {
	Database *gorm.DB
}

func NewRepo(db *gorm.DB) DBRepo {
	return &repo{Database: db}
}

func (r *repo) DB() *gorm.DB {
	return r.Database
}

func (r *repo) Ping(ctx context.Context) error {
	sqlDB, err := r.Database.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *repo) Close() error {
	sqlDB, err := r.Database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
