package entity

import (
	"time"

	"github.com/google/uuid"
)

// TransactionTypeSync labels holding transactions produced by the balance
// sync path. Other labels ("deposit", "manual_adjustment", ...) are reserved
// for future write paths.
const TransactionTypeSync = "sync"

// Holding is the current-state row for one asset within one account.
//
// Invariant: Quantity always equals the QuantityAfter of the most recent
// HoldingTransaction for this holding.
type Holding struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_holdings_account_asset"`

	// AssetSymbol as reported by the source, e.g. "BTC" or "ETH-ethereum".
	AssetSymbol string `gorm:"not null;uniqueIndex:idx_holdings_account_asset"`

	// Quantity is a normalized decimal string.
	Quantity string `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HoldingTransaction is an append-only audit record of a single quantity
// change. Replaying the transactions of a holding in created_at order
// reproduces its current quantity.
type HoldingTransaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	HoldingID uuid.UUID `gorm:"type:uuid;index;not null"`

	QuantityBefore string `gorm:"not null"`
	QuantityAfter  string `gorm:"not null"`
	// QuantityChange is the signed delta quantity_after - quantity_before.
	QuantityChange string `gorm:"not null"`

	TransactionType string `gorm:"not null"`
	// Source names the data origin: "okx", "binance", "evm", "solana", ...
	Source string `gorm:"not null"`

	Metadata []byte `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
