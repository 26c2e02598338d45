// Package storage is the Postgres persistence layer: accounts, the holdings
// ledger, and the asset catalog, all through gorm repositories.
package storage

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hodlsync/hodlsync/internal/entity"
)

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the sync engine touches.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entity.Account{},
		&entity.Holding{},
		&entity.HoldingTransaction{},
		&entity.Asset{},
		&entity.AssetContract{},
		&entity.AssetPrice{},
		&entity.EVMChain{},
		&entity.EVMToken{},
		&entity.SolanaToken{},
	)
	return errors.Wrap(err, "migrate schema")
}
