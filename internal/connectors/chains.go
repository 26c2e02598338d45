package connectors

import (
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ChainConfig describes one EVM chain to query: where to ask, what the
// native coin is called, and which ERC-20 contracts to probe.
type ChainConfig struct {
	Name         string        `yaml:"name"`
	RPCURL       string        `yaml:"rpc_url"`
	NativeSymbol string        `yaml:"native_symbol"`
	Tokens       []TokenConfig `yaml:"tokens"`
}

// TokenConfig is one ERC-20 token on a chain.
type TokenConfig struct {
	Symbol          string `yaml:"symbol"`
	ContractAddress string `yaml:"contract_address"`
}

// SolanaTokenConfig is one SPL token recognised during sync.
type SolanaTokenConfig struct {
	Symbol      string `yaml:"symbol"`
	MintAddress string `yaml:"mint_address"`
}

// ChainSource is the configuration backend (normally the DB catalog).
// Errors and empty results fall back to the built-in curated lists.
type ChainSource interface {
	EVMChainConfigs() ([]ChainConfig, error)
	SolanaTokens() ([]SolanaTokenConfig, error)
}

// DefaultEVMChains is the built-in curated chain and token registry, used
// when no configuration rows exist or the catalog is unreachable. Only a
// handful of well-known tokens are probed per chain: there is no complete
// on-chain registry of ERC-20s, and scanning transfer logs on public RPC
// endpoints is too slow and too rate-limited to be worth it.
func DefaultEVMChains() []ChainConfig {
	return []ChainConfig{
		{
			Name:         "ethereum",
			RPCURL:       "https://eth.llamarpc.com",
			NativeSymbol: "ETH",
			Tokens: []TokenConfig{
				{Symbol: "USDT", ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
				{Symbol: "USDC", ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
				{Symbol: "DAI", ContractAddress: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
				{Symbol: "WETH", ContractAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
			},
		},
		{
			Name:         "arbitrum",
			RPCURL:       "https://arbitrum.llamarpc.com",
			NativeSymbol: "ETH",
			Tokens: []TokenConfig{
				{Symbol: "USDT", ContractAddress: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"},
				{Symbol: "USDC", ContractAddress: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"},
				{Symbol: "DAI", ContractAddress: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"},
				{Symbol: "WETH", ContractAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"},
			},
		},
		{
			Name:         "optimism",
			RPCURL:       "https://optimism.llamarpc.com",
			NativeSymbol: "ETH",
			Tokens: []TokenConfig{
				{Symbol: "USDT", ContractAddress: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58"},
				{Symbol: "USDC", ContractAddress: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"},
				{Symbol: "DAI", ContractAddress: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"},
				{Symbol: "WETH", ContractAddress: "0x4200000000000000000000000000000000000006"},
			},
		},
		{
			Name:         "base",
			RPCURL:       "https://base.llamarpc.com",
			NativeSymbol: "ETH",
			Tokens: []TokenConfig{
				{Symbol: "USDC", ContractAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
				{Symbol: "DAI", ContractAddress: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"},
				{Symbol: "WETH", ContractAddress: "0x4200000000000000000000000000000000000006"},
			},
		},
		{
			Name:         "bsc",
			RPCURL:       "https://bsc-dataseed.bnbchain.org",
			NativeSymbol: "BNB",
			Tokens: []TokenConfig{
				{Symbol: "USDT", ContractAddress: "0x55d398326f99059fF775485246999027B3197955"},
				{Symbol: "USDC", ContractAddress: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d"},
				{Symbol: "DAI", ContractAddress: "0x1AF3F329e8BE154074D8769D1FFa4eE058B1DBc3"},
				{Symbol: "WBNB", ContractAddress: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"},
			},
		},
	}
}

// DefaultSolanaTokens is the built-in curated SPL token list. Unrecognised
// mints are skipped during sync; extend via the solana_tokens table.
func DefaultSolanaTokens() []SolanaTokenConfig {
	return []SolanaTokenConfig{
		// stablecoins
		{Symbol: "USDC", MintAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
		{Symbol: "USDT", MintAddress: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"},
		// liquid staking / wrapped
		{Symbol: "MSOL", MintAddress: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"},
		{Symbol: "STSOL", MintAddress: "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj"},
		{Symbol: "JITOSOL", MintAddress: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"},
		// defi
		{Symbol: "RAY", MintAddress: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"},
		{Symbol: "JUP", MintAddress: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"},
		{Symbol: "PYTH", MintAddress: "HZ1JovNiVvGrk8Zas8vbMGMBBHHNzFn2Gb8E9Z4vNxBL"},
		{Symbol: "JTO", MintAddress: "jtojtomepa8beP8AuQc6eXt5FriJwfFMwjx2v2f9mUL"},
		// memes
		{Symbol: "BONK", MintAddress: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"},
		{Symbol: "WIF", MintAddress: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"},
	}
}

// LoadEVMChains resolves the chain registry: catalog rows first, then the
// built-in list. The fallback is an explicit branch here, not a side effect.
func LoadEVMChains(src ChainSource, logger *zap.Logger) []ChainConfig {
	if src == nil {
		return DefaultEVMChains()
	}

	chains, err := src.EVMChainConfigs()
	if err != nil {
		logger.Warn("failed to load EVM chain config, using built-in defaults", zap.Error(err))
		return DefaultEVMChains()
	}
	if len(chains) == 0 {
		return DefaultEVMChains()
	}
	return chains
}

// LoadSolanaTokenMap resolves the SPL mint->symbol map the same way.
func LoadSolanaTokenMap(src ChainSource, logger *zap.Logger) map[string]string {
	tokens := DefaultSolanaTokens()
	if src != nil {
		fromSource, err := src.SolanaTokens()
		switch {
		case err != nil:
			logger.Warn("failed to load Solana token config, using built-in defaults", zap.Error(err))
		case len(fromSource) > 0:
			tokens = fromSource
		}
	}

	return lo.SliceToMap(tokens, func(t SolanaTokenConfig) (string, string) {
		return t.MintAddress, t.Symbol
	})
}

// FilterEnabledChains restricts the registry to the chains an account has
// enabled. Unknown names are logged and skipped; if nothing valid remains,
// every configured chain is used.
func FilterEnabledChains(chains []ChainConfig, enabled []string, logger *zap.Logger) []ChainConfig {
	if len(enabled) == 0 {
		return chains
	}

	known := lo.SliceToMap(chains, func(c ChainConfig) (string, ChainConfig) {
		return c.Name, c
	})

	var filtered []ChainConfig
	for _, name := range enabled {
		chain, ok := known[name]
		if !ok {
			logger.Warn("unknown chain name in enabled_chains", zap.String("chain", name))
			continue
		}
		filtered = append(filtered, chain)
	}

	if len(filtered) == 0 {
		return chains
	}
	return filtered
}
