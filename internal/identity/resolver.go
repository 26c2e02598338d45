// Package identity maps source-specific asset identifiers (exchange symbols,
// chain-suffixed symbols, EVM contract addresses) to canonical catalog
// assets. Every lookup produces a Resolution value; a miss is data, not an
// error, so batch callers continue past individual unknowns.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
)

// knownEVMChains are the chain suffixes recognised in "SYMBOL-CHAIN"
// identifiers. The allowlist is deliberately fixed: a hyphenated symbol that
// happens to end in one of these names will be misparsed, and that trade-off
// is accepted.
var knownEVMChains = []string{"ethereum", "arbitrum", "optimism", "base", "bsc"}

// Mapping provenance values recorded on resolved identities.
const (
	SourceExchangeSymbol = "exchange_symbol"
	SourceEVMContract    = "evm_contract"
	SourceDirectSymbol   = "direct_symbol"
	SourceSymbolAndName  = "symbol_and_name"
)

// Catalog is the asset registry the resolver reads. Implemented by
// storage.Catalog over Postgres; tests use an in-memory map.
type Catalog interface {
	// BestRankedAssetBySymbol returns the asset with the lowest market-cap
	// rank among those sharing symbol, or any match when none are ranked,
	// or nil when the symbol is absent.
	BestRankedAssetBySymbol(symbol string) (*entity.Asset, error)
	// AssetBySymbolAndName matches the strict catalog uniqueness key.
	AssetBySymbolAndName(symbol, name string) (*entity.Asset, error)
	// ContractByChainAndAddress looks up a lowercased (chain, address) pair.
	ContractByChainAndAddress(chain, address string) (*entity.AssetContract, error)
	AssetByID(id uuid.UUID) (*entity.Asset, error)
}

// AssetIdentity is a successful resolution: the canonical asset plus the
// provenance of the match.
type AssetIdentity struct {
	AssetID       uuid.UUID
	Symbol        string
	Name          string
	MappingSource string
	DebugInfo     string
}

// Resolution is the tagged outcome of one lookup. Exactly one of Identity
// or the Unknown fields is populated.
type Resolution struct {
	Identity *AssetIdentity

	OriginalIdentifier string
	IdentifierType     string
	Context            string
}

// IsMapped reports whether the lookup found a canonical asset.
func (r Resolution) IsMapped() bool { return r.Identity != nil }

func (r Resolution) String() string {
	if r.Identity != nil {
		return fmt.Sprintf("mapped to %s (%s)", r.Identity.Symbol, r.Identity.AssetID)
	}
	return fmt.Sprintf("unknown %s %q", r.IdentifierType, r.OriginalIdentifier)
}

func mapped(asset *entity.Asset, source, debugInfo string) Resolution {
	return Resolution{Identity: &AssetIdentity{
		AssetID:       asset.ID,
		Symbol:        asset.Symbol,
		Name:          asset.Name,
		MappingSource: source,
		DebugInfo:     debugInfo,
	}}
}

func unknown(original, identifierType, context string) Resolution {
	return Resolution{
		OriginalIdentifier: original,
		IdentifierType:     identifierType,
		Context:            context,
	}
}

// Resolver resolves external identifiers against a catalog.
type Resolver struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewResolver(catalog Catalog, logger *zap.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// FromExchangeSymbol resolves a bare exchange symbol, case-insensitively.
// When several catalog assets share the symbol the best-ranked one wins.
func (r *Resolver) FromExchangeSymbol(symbol string) Resolution {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return unknown(symbol, SourceExchangeSymbol, "empty symbol")
	}

	asset, err := r.catalog.BestRankedAssetBySymbol(normalized)
	if err != nil {
		r.logger.Error("symbol lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return unknown(symbol, SourceExchangeSymbol, fmt.Sprintf("catalog error: %v", err))
	}
	if asset == nil {
		return unknown(symbol, SourceExchangeSymbol,
			fmt.Sprintf("symbol %q not found in asset catalog", normalized))
	}

	return mapped(asset, SourceExchangeSymbol,
		fmt.Sprintf("mapped exchange symbol %q to asset %s (%s)", symbol, asset.Symbol, asset.ID))
}

// FromEVMContract resolves a (chain, contract address) pair. Chain and
// address are lowercased before lookup; a missing contract row or a dangling
// asset reference both resolve to Unknown with the failing step in Context.
func (r *Resolver) FromEVMContract(contractAddress, chain string) Resolution {
	address := strings.ToLower(strings.TrimSpace(contractAddress))
	chainName := strings.ToLower(strings.TrimSpace(chain))

	if address == "" {
		return unknown(contractAddress, SourceEVMContract, "empty contract address")
	}

	contract, err := r.catalog.ContractByChainAndAddress(chainName, address)
	if err != nil {
		r.logger.Error("contract lookup failed",
			zap.String("chain", chainName), zap.String("address", address), zap.Error(err))
		return unknown(contractAddress, SourceEVMContract, fmt.Sprintf("catalog error: %v", err))
	}
	if contract == nil {
		return unknown(contractAddress, SourceEVMContract,
			fmt.Sprintf("contract %q on chain %q not registered", address, chainName))
	}

	asset, err := r.catalog.AssetByID(contract.AssetID)
	if err != nil {
		r.logger.Error("asset fetch failed", zap.Stringer("asset_id", contract.AssetID), zap.Error(err))
		return unknown(contractAddress, SourceEVMContract, fmt.Sprintf("catalog error: %v", err))
	}
	if asset == nil {
		return unknown(contractAddress, SourceEVMContract,
			fmt.Sprintf("asset %s referenced by contract %q does not exist", contract.AssetID, address))
	}

	return mapped(asset, SourceEVMContract,
		fmt.Sprintf("mapped contract %q on %s to asset %s (%s)", contractAddress, chain, asset.Symbol, asset.ID))
}

// FromSymbolAndName resolves against the strict (symbol, name) uniqueness
// key of the catalog.
func (r *Resolver) FromSymbolAndName(symbol, name string) Resolution {
	normalizedSymbol := strings.ToUpper(strings.TrimSpace(symbol))
	normalizedName := strings.TrimSpace(name)
	original := symbol + ":" + name

	if normalizedSymbol == "" || normalizedName == "" {
		return unknown(original, SourceSymbolAndName, "empty symbol or name")
	}

	asset, err := r.catalog.AssetBySymbolAndName(normalizedSymbol, normalizedName)
	if err != nil {
		r.logger.Error("symbol+name lookup failed",
			zap.String("symbol", symbol), zap.String("name", name), zap.Error(err))
		return unknown(original, SourceSymbolAndName, fmt.Sprintf("catalog error: %v", err))
	}
	if asset == nil {
		return unknown(original, SourceSymbolAndName,
			fmt.Sprintf("no asset with symbol %q and name %q", normalizedSymbol, normalizedName))
	}

	return mapped(asset, SourceSymbolAndName,
		fmt.Sprintf("mapped symbol %q name %q to asset %s", symbol, name, asset.ID))
}

// FromSymbol resolves a generic symbol that may carry a chain suffix
// ("USDT-ethereum"). A recognised suffix is stripped and the base symbol
// tried first; if that misses, resolution falls through to the full
// identifier. Contract-based lookup needs chain+address context this method
// does not have, so a suffixed symbol whose base is not in the catalog still
// comes back Unknown.
func (r *Resolver) FromSymbol(symbol string) Resolution {
	if base, chain, ok := splitChainSuffix(symbol); ok {
		normalized := strings.ToUpper(strings.TrimSpace(base))
		asset, err := r.catalog.BestRankedAssetBySymbol(normalized)
		if err == nil && asset != nil {
			return mapped(asset, SourceDirectSymbol,
				fmt.Sprintf("mapped chain symbol %q (chain %s) to asset %s (%s)", symbol, chain, asset.Symbol, asset.ID))
		}
		r.logger.Debug("chain-suffixed base symbol not in catalog",
			zap.String("symbol", symbol), zap.String("base", base))
	}

	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return unknown(symbol, SourceDirectSymbol, "empty symbol")
	}

	asset, err := r.catalog.BestRankedAssetBySymbol(normalized)
	if err != nil {
		r.logger.Error("symbol lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return unknown(symbol, SourceDirectSymbol, fmt.Sprintf("catalog error: %v", err))
	}
	if asset == nil {
		return unknown(symbol, SourceDirectSymbol,
			fmt.Sprintf("symbol %q not found in asset catalog", normalized))
	}

	return mapped(asset, SourceDirectSymbol,
		fmt.Sprintf("mapped symbol %q to asset %s (%s)", symbol, asset.Symbol, asset.ID))
}

// splitChainSuffix splits "SYMBOL-CHAIN" on the LAST hyphen and reports
// whether the suffix is a recognised chain name.
func splitChainSuffix(symbol string) (base, chain string, ok bool) {
	idx := strings.LastIndex(symbol, "-")
	if idx <= 0 || idx == len(symbol)-1 {
		return "", "", false
	}

	base, chain = symbol[:idx], strings.ToLower(symbol[idx+1:])
	if !lo.Contains(knownEVMChains, chain) {
		return "", "", false
	}
	return base, chain, true
}
