package connectors

import (
	"context"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
)

// BinanceConnector fetches spot balances through the Binance SDK, which
// handles request signing itself. Quantity is free+locked; Binance reports
// decimal values, so Decimals stays nil.
type BinanceConnector struct {
	client  *binance.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewBinanceConnector creates a Binance connector from API credentials.
func NewBinanceConnector(apiKey, apiSecret string, limiter *ratelimit.Limiter, logger *zap.Logger) *BinanceConnector {
	return &BinanceConnector{
		client:  binance.NewClient(apiKey, apiSecret),
		limiter: limiter,
		logger:  logger,
	}
}

// FetchSpotBalances returns all non-zero spot account balances.
func (c *BinanceConnector) FetchSpotBalances(ctx context.Context) ([]entity.Balance, error) {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire exchange rate limit")
	}
	defer release()

	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch Binance account")
	}

	var balances []entity.Balance
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			c.logger.Warn("unparseable free balance", zap.String("asset", b.Asset), zap.Error(err))
			continue
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			c.logger.Warn("unparseable locked balance", zap.String("asset", b.Asset), zap.Error(err))
			continue
		}

		total := free.Add(locked)
		if !total.IsPositive() {
			continue
		}

		balances = append(balances, entity.Balance{
			Asset:     b.Asset,
			Quantity:  total.String(),
			Available: free.String(),
			Frozen:    locked.String(),
		})
	}

	c.logger.Info("fetched Binance balances", zap.Int("count", len(balances)))
	return balances, nil
}
