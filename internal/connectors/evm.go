package connectors

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
	"github.com/hodlsync/hodlsync/pkg/retrier"
)

// evmNativeDecimals: every supported EVM chain denominates its native coin
// in 18 decimals.
const evmNativeDecimals uint8 = 18

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// EVMConnector fetches native and ERC-20 balances for one wallet address
// across several EVM chains. Chains are queried concurrently and joined with
// wait-for-all semantics: a slow or failing chain never invalidates the
// others, and per-token failures only skip that token.
//
// Quantities are returned as raw integer strings with Decimals set; the
// orchestrator normalizes them.
type EVMConnector struct {
	wallet  common.Address
	chains  []ChainConfig
	limiter *ratelimit.Limiter
	retry   *retrier.Retrier
	logger  *zap.Logger

	erc20 abi.ABI
}

// NewEVMConnector validates the wallet address and builds a connector over
// the given chain registry.
func NewEVMConnector(walletAddress string, chains []ChainConfig, limiter *ratelimit.Limiter, logger *zap.Logger) (*EVMConnector, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, errors.Errorf("invalid wallet address: %s", walletAddress)
	}
	if len(chains) == 0 {
		chains = DefaultEVMChains()
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse ERC-20 ABI")
	}

	return &EVMConnector{
		wallet:  common.HexToAddress(walletAddress),
		chains:  chains,
		limiter: limiter,
		retry:   retrier.New(retrier.WithMaxRetries(2), retrier.WithBaseDelay(200*time.Millisecond)),
		logger:  logger,
		erc20:   parsed,
	}, nil
}

// FetchSpotBalances queries every configured chain concurrently and merges
// the results. No ordering guarantee exists between chains.
func (c *EVMConnector) FetchSpotBalances(ctx context.Context) ([]entity.Balance, error) {
	c.logger.Info("fetching EVM balances",
		zap.Stringer("wallet", c.wallet),
		zap.Int("chains", len(c.chains)))

	perChain := make([][]entity.Balance, len(c.chains))

	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range c.chains {
		g.Go(func() error {
			// chain failures are partial failures: log and move on
			balances, err := c.fetchChain(gctx, chain)
			if err != nil {
				c.logger.Error("chain fetch failed, skipping",
					zap.String("chain", chain.Name), zap.Error(err))
				return nil
			}
			perChain[i] = balances
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []entity.Balance
	for _, balances := range perChain {
		all = append(all, balances...)
	}

	c.logger.Info("fetched EVM balances", zap.Int("count", len(all)))
	return all, nil
}

// fetchChain reads the native balance and every configured token balance on
// one chain, holding a single rate-limit permit for the whole unit of work.
func (c *EVMConnector) fetchChain(ctx context.Context, chain ChainConfig) ([]entity.Balance, error) {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire EVM rate limit")
	}
	defer release()

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s RPC", chain.Name)
	}
	defer client.Close()

	var balances []entity.Balance

	if native, err := c.fetchNative(ctx, client, chain); err != nil {
		c.logger.Error("failed to fetch native balance",
			zap.String("chain", chain.Name), zap.Error(err))
	} else if native != nil {
		balances = append(balances, *native)
	}

	for _, token := range chain.Tokens {
		balance, err := c.fetchToken(ctx, client, chain, token)
		if err != nil {
			c.logger.Debug("failed to fetch token balance",
				zap.String("chain", chain.Name),
				zap.String("token", token.Symbol),
				zap.Error(err))
			continue
		}
		if balance != nil {
			balances = append(balances, *balance)
		}
	}

	return balances, nil
}

func (c *EVMConnector) fetchNative(ctx context.Context, client *ethclient.Client, chain ChainConfig) (*entity.Balance, error) {
	wei, err := retrier.DoWithData(c.retry, ctx, func(ctx context.Context) (*big.Int, error) {
		return client.BalanceAt(ctx, c.wallet, nil)
	})
	if err != nil {
		return nil, err
	}
	if wei.Sign() == 0 {
		return nil, nil
	}

	raw := wei.String()
	return &entity.Balance{
		Asset:     fmt.Sprintf("%s-%s", chain.NativeSymbol, chain.Name),
		Quantity:  raw,
		Available: raw,
		Frozen:    "0",
		Decimals:  uint8Ptr(evmNativeDecimals),
	}, nil
}

func (c *EVMConnector) fetchToken(ctx context.Context, client *ethclient.Client, chain ChainConfig, token TokenConfig) (*entity.Balance, error) {
	if !common.IsHexAddress(token.ContractAddress) {
		return nil, errors.Errorf("invalid contract address: %s", token.ContractAddress)
	}
	contract := common.HexToAddress(token.ContractAddress)

	amount, err := c.callBalanceOf(ctx, client, contract)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, nil
	}

	// decimals failure is non-fatal: the raw value still gets stored
	var decimalsPtr *uint8
	if d, err := c.callDecimals(ctx, client, contract); err != nil {
		c.logger.Warn("failed to fetch token decimals, keeping raw value",
			zap.String("chain", chain.Name),
			zap.String("token", token.Symbol),
			zap.Error(err))
	} else {
		decimalsPtr = uint8Ptr(d)
	}

	raw := amount.String()
	return &entity.Balance{
		Asset:     fmt.Sprintf("%s-%s", token.Symbol, chain.Name),
		Quantity:  raw,
		Available: raw,
		Frozen:    "0",
		Decimals:  decimalsPtr,
	}, nil
}

func (c *EVMConnector) callBalanceOf(ctx context.Context, client *ethclient.Client, contract common.Address) (*big.Int, error) {
	input, err := c.erc20.Pack("balanceOf", c.wallet)
	if err != nil {
		return nil, errors.Wrap(err, "pack balanceOf")
	}

	output, err := retrier.DoWithData(c.retry, ctx, func(ctx context.Context) ([]byte, error) {
		return client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	})
	if err != nil {
		return nil, errors.Wrap(err, "call balanceOf")
	}

	results, err := c.erc20.Unpack("balanceOf", output)
	if err != nil {
		return nil, errors.Wrap(err, "unpack balanceOf")
	}
	amount, ok := results[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected balanceOf return type")
	}
	return amount, nil
}

func (c *EVMConnector) callDecimals(ctx context.Context, client *ethclient.Client, contract common.Address) (uint8, error) {
	input, err := c.erc20.Pack("decimals")
	if err != nil {
		return 0, errors.Wrap(err, "pack decimals")
	}

	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "call decimals")
	}

	results, err := c.erc20.Unpack("decimals", output)
	if err != nil {
		return 0, errors.Wrap(err, "unpack decimals")
	}
	decimals, ok := results[0].(uint8)
	if !ok {
		return 0, errors.New("unexpected decimals return type")
	}
	return decimals, nil
}
