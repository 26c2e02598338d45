package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account types supported by the sync engine.
const (
	AccountTypeExchange = "exchange"
	AccountTypeWallet   = "wallet"
)

// AccountHolding is a single entry of the denormalized holdings snapshot
// stored on Account. It carries ONLY the asset symbol and the quantity:
// price, value, available and frozen fields never go into the snapshot.
// Valuation happens downstream over reference price data.
type AccountHolding struct {
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

// Account is an external balance source: either an exchange account with
// API credentials or an on-chain wallet address.
//
// Credentials are opaque encrypted strings (see internal/secrets) and are
// decrypted only at connector construction time.
type Account struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null"`

	Name        string `gorm:"not null"`
	AccountType string `gorm:"not null"`

	// ExchangeName selects the connector: "okx"/"binance"/"bybit" for
	// exchange accounts, "solana" for Solana wallets, anything else (or
	// empty) means an EVM wallet.
	ExchangeName  *string
	WalletAddress *string

	APIKeyEncrypted     *string
	APISecretEncrypted  *string
	PassphraseEncrypted *string

	// EnabledChains restricts which EVM chains are queried for this wallet.
	// Empty means all configured chains.
	EnabledChains []string `gorm:"serializer:json;type:jsonb"`

	// Holdings is the quantity-only snapshot overwritten on every
	// successful sync.
	Holdings []AccountHolding `gorm:"serializer:json;type:jsonb"`

	IsActive     bool `gorm:"not null;default:true"`
	LastSyncedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
