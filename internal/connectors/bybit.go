package connectors

import (
	"context"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
)

// BybitConnector fetches unified-account wallet balances through the Bybit
// v5 SDK. Decimals stays nil: Bybit reports decimal values.
type BybitConnector struct {
	client  *bybit.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewBybitConnector creates a Bybit connector from API credentials.
func NewBybitConnector(apiKey, apiSecret string, limiter *ratelimit.Limiter, logger *zap.Logger) *BybitConnector {
	return &BybitConnector{
		client:  bybit.NewClient().WithAuth(apiKey, apiSecret),
		limiter: limiter,
		logger:  logger,
	}
}

// FetchSpotBalances returns all non-zero coin balances of the unified
// account.
func (c *BybitConnector) FetchSpotBalances(ctx context.Context) ([]entity.Balance, error) {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire exchange rate limit")
	}
	defer release()

	resp, err := c.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5UNIFIED, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch Bybit wallet balance")
	}

	var balances []entity.Balance
	for _, list := range resp.Result.List {
		for _, coin := range list.Coin {
			wallet, err := decimal.NewFromString(coin.WalletBalance)
			if err != nil {
				c.logger.Warn("unparseable wallet balance",
					zap.String("coin", string(coin.Coin)), zap.Error(err))
				continue
			}
			if !wallet.IsPositive() {
				continue
			}

			locked := decimal.Zero
			if coin.Locked != "" {
				if l, err := decimal.NewFromString(coin.Locked); err == nil {
					locked = l
				}
			}

			balances = append(balances, entity.Balance{
				Asset:     string(coin.Coin),
				Quantity:  wallet.String(),
				Available: wallet.Sub(locked).String(),
				Frozen:    locked.String(),
			})
		}
	}

	c.logger.Info("fetched Bybit balances", zap.Int("count", len(balances)))
	return balances, nil
}
