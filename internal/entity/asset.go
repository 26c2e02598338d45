package entity

import (
	"time"

	"github.com/google/uuid"
)

// Asset is a canonical tradable asset. Two assets may share a symbol (two
// unrelated "ETH" tokens); uniqueness is enforced on (symbol, name).
type Asset struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Symbol string    `gorm:"not null;uniqueIndex:idx_assets_symbol_name"`
	Name   string    `gorm:"not null;uniqueIndex:idx_assets_symbol_name"`

	// AssetType: "cryptocurrency", "token", "stablecoin".
	AssetType string `gorm:"not null"`

	CoinpaprikaID *string
	LogoURL       *string
	Decimals      *int
	IsActive      bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssetContract maps an on-chain contract address to a canonical asset.
// Chain and contract address are stored lowercased.
type AssetContract struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	AssetID uuid.UUID `gorm:"type:uuid;index;not null"`

	Chain           string `gorm:"not null;uniqueIndex:idx_contracts_chain_address"`
	ContractAddress string `gorm:"not null;uniqueIndex:idx_contracts_chain_address"`

	// TokenStandard: "ERC20", "BEP20", "SPL", ...
	TokenStandard *string
	Decimals      *int
	IsVerified    bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssetPrice is a reference price row. The sync core only reads Rank from it
// (market-cap ordering, lower is better) to break symbol ties during identity
// resolution; price collection itself is a separate read path.
type AssetPrice struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	AssetID uuid.UUID `gorm:"type:uuid;index;not null"`

	PriceUSD   *string
	Rank       *int64
	RecordedAt time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EVMChain is a DB-configured EVM chain: where to ask and what the native
// coin is called.
type EVMChain struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null;uniqueIndex"`
	RPCURL       string    `gorm:"not null"`
	NativeSymbol string    `gorm:"not null"`
	IsActive     bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EVMToken is a DB-configured ERC-20 token to probe on a chain.
type EVMToken struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Chain           string    `gorm:"not null;index"`
	Symbol          string    `gorm:"not null"`
	ContractAddress string    `gorm:"not null"`
	IsActive        bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SolanaToken is a DB-configured SPL token. Token accounts whose mint is not
// listed here (or in the built-in fallback list) are skipped during sync.
type SolanaToken struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Symbol      string    `gorm:"not null"`
	MintAddress string    `gorm:"not null;uniqueIndex"`
	IsActive    bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
