package connectors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubChainSource struct {
	chains    []ChainConfig
	tokens    []SolanaTokenConfig
	chainsErr error
	tokensErr error
}

func (s *stubChainSource) EVMChainConfigs() ([]ChainConfig, error) { return s.chains, s.chainsErr }
func (s *stubChainSource) SolanaTokens() ([]SolanaTokenConfig, error) {
	return s.tokens, s.tokensErr
}

func TestLoadEVMChains(t *testing.T) {
	logger := zap.NewNop()

	t.Run("nil source falls back to defaults", func(t *testing.T) {
		chains := LoadEVMChains(nil, logger)
		assert.Equal(t, DefaultEVMChains(), chains)
	})

	t.Run("source error falls back to defaults", func(t *testing.T) {
		chains := LoadEVMChains(&stubChainSource{chainsErr: errors.New("db down")}, logger)
		assert.Equal(t, DefaultEVMChains(), chains)
	})

	t.Run("empty source falls back to defaults", func(t *testing.T) {
		chains := LoadEVMChains(&stubChainSource{}, logger)
		assert.Equal(t, DefaultEVMChains(), chains)
	})

	t.Run("configured chains win", func(t *testing.T) {
		custom := []ChainConfig{{Name: "sepolia", RPCURL: "http://localhost:8545", NativeSymbol: "ETH"}}
		chains := LoadEVMChains(&stubChainSource{chains: custom}, logger)
		assert.Equal(t, custom, chains)
	})
}

func TestLoadSolanaTokenMap(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults cover the curated list", func(t *testing.T) {
		m := LoadSolanaTokenMap(nil, logger)
		assert.Len(t, m, len(DefaultSolanaTokens()))
		assert.Equal(t, "USDC", m["EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"])
	})

	t.Run("source error falls back to defaults", func(t *testing.T) {
		m := LoadSolanaTokenMap(&stubChainSource{tokensErr: errors.New("db down")}, logger)
		assert.Len(t, m, len(DefaultSolanaTokens()))
	})

	t.Run("configured tokens replace defaults", func(t *testing.T) {
		m := LoadSolanaTokenMap(&stubChainSource{
			tokens: []SolanaTokenConfig{{Symbol: "FOO", MintAddress: "MintFoo"}},
		}, logger)
		require.Len(t, m, 1)
		assert.Equal(t, "FOO", m["MintFoo"])
	})
}

func TestFilterEnabledChains(t *testing.T) {
	logger := zap.NewNop()
	chains := []ChainConfig{
		{Name: "ethereum"},
		{Name: "arbitrum"},
		{Name: "base"},
	}

	t.Run("empty filter keeps everything", func(t *testing.T) {
		assert.Equal(t, chains, FilterEnabledChains(chains, nil, logger))
	})

	t.Run("filter selects and preserves request order", func(t *testing.T) {
		got := FilterEnabledChains(chains, []string{"base", "ethereum"}, logger)
		require.Len(t, got, 2)
		assert.Equal(t, "base", got[0].Name)
		assert.Equal(t, "ethereum", got[1].Name)
	})

	t.Run("unknown names are skipped", func(t *testing.T) {
		got := FilterEnabledChains(chains, []string{"arbitrum", "polygon"}, logger)
		require.Len(t, got, 1)
		assert.Equal(t, "arbitrum", got[0].Name)
	})

	t.Run("nothing valid falls back to all chains", func(t *testing.T) {
		got := FilterEnabledChains(chains, []string{"polygon", "avalanche"}, logger)
		assert.Equal(t, chains, got)
	})
}
