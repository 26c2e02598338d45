package storage

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/hodlsync/hodlsync/internal/connectors"
	"github.com/hodlsync/hodlsync/internal/entity"
)

// Catalog reads the asset registry and the chain/token configuration tables.
// It backs both identity resolution and connector configuration; callers
// fall back to built-in lists when its config reads fail or come back empty.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// BestRankedAssetBySymbol picks, among assets sharing a symbol, the one with
// the lowest market-cap rank in the price table. Assets without rank data
// only win when no ranked candidate exists.
func (c *Catalog) BestRankedAssetBySymbol(symbol string) (*entity.Asset, error) {
	var asset entity.Asset
	err := c.db.
		Joins("INNER JOIN asset_prices ON asset_prices.asset_id = assets.id").
		Where("assets.symbol = ? AND asset_prices.rank IS NOT NULL", symbol).
		Order("asset_prices.rank ASC").
		First(&asset).Error
	if err == nil {
		return &asset, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "ranked symbol lookup")
	}

	// no ranked candidate: any match will do
	err = c.db.Where("symbol = ?", symbol).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "symbol lookup")
	}
	return &asset, nil
}

func (c *Catalog) AssetBySymbolAndName(symbol, name string) (*entity.Asset, error) {
	var asset entity.Asset
	err := c.db.Where("symbol = ? AND name = ?", symbol, name).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "symbol+name lookup")
	}
	return &asset, nil
}

func (c *Catalog) ContractByChainAndAddress(chain, address string) (*entity.AssetContract, error) {
	var contract entity.AssetContract
	err := c.db.Where("chain = ? AND contract_address = ?", chain, address).First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "contract lookup")
	}
	return &contract, nil
}

func (c *Catalog) AssetByID(id uuid.UUID) (*entity.Asset, error) {
	var asset entity.Asset
	err := c.db.First(&asset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "asset lookup")
	}
	return &asset, nil
}

// EVMChainConfigs assembles the active chain registry with each chain's
// active tokens. An empty result makes connectors use built-in defaults.
func (c *Catalog) EVMChainConfigs() ([]connectors.ChainConfig, error) {
	var chains []entity.EVMChain
	if err := c.db.Where("is_active = ?", true).Order("name ASC").Find(&chains).Error; err != nil {
		return nil, errors.Wrap(err, "list EVM chains")
	}
	if len(chains) == 0 {
		return nil, nil
	}

	var tokens []entity.EVMToken
	if err := c.db.Where("is_active = ?", true).Find(&tokens).Error; err != nil {
		return nil, errors.Wrap(err, "list EVM tokens")
	}
	byChain := lo.GroupBy(tokens, func(t entity.EVMToken) string { return t.Chain })

	return lo.Map(chains, func(chain entity.EVMChain, _ int) connectors.ChainConfig {
		return connectors.ChainConfig{
			Name:         chain.Name,
			RPCURL:       chain.RPCURL,
			NativeSymbol: chain.NativeSymbol,
			Tokens: lo.Map(byChain[chain.Name], func(t entity.EVMToken, _ int) connectors.TokenConfig {
				return connectors.TokenConfig{Symbol: t.Symbol, ContractAddress: t.ContractAddress}
			}),
		}
	}), nil
}

// SolanaTokens lists the active SPL token registry.
func (c *Catalog) SolanaTokens() ([]connectors.SolanaTokenConfig, error) {
	var tokens []entity.SolanaToken
	if err := c.db.Where("is_active = ?", true).Find(&tokens).Error; err != nil {
		return nil, errors.Wrap(err, "list Solana tokens")
	}
	return lo.Map(tokens, func(t entity.SolanaToken, _ int) connectors.SolanaTokenConfig {
		return connectors.SolanaTokenConfig{Symbol: t.Symbol, MintAddress: t.MintAddress}
	}), nil
}
