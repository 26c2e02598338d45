package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
)

const (
	okxBaseURL         = "https://www.okx.com"
	okxBalanceEndpoint = "/api/v5/account/balance"
	okxTimestampLayout = "2006-01-02T15:04:05.000Z"
)

// OKXConnector fetches spot balances from OKX with read-only API
// credentials. Every request is signed with HMAC-SHA256 over
// timestamp+method+path, base64 encoded, per the OKX v5 auth scheme.
type OKXConnector struct {
	apiKey     string
	apiSecret  string
	passphrase string

	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// NewOKXConnector creates an OKX connector. The limiter must be the shared
// exchange-class limiter so the bulkhead bound holds across accounts.
func NewOKXConnector(apiKey, apiSecret, passphrase string, limiter *ratelimit.Limiter, logger *zap.Logger) *OKXConnector {
	return &OKXConnector{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		logger:     logger,
	}
}

// sign produces the OK-ACCESS-SIGN header value for a request.
func (c *OKXConnector) sign(timestamp, method, requestPath string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(timestamp + method + requestPath))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *OKXConnector) get(ctx context.Context, endpoint string) ([]byte, error) {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire exchange rate limit")
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, okxBaseURL+endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build OKX request")
	}

	timestamp := time.Now().UTC().Format(okxTimestampLayout)
	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(timestamp, http.MethodGet, endpoint))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "OKX request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read OKX response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("OKX API error: %s - %s", resp.Status, body)
	}
	return body, nil
}

// FetchSpotBalances returns all non-zero trading-account balances.
// OKX already reports decimal quantities, so Decimals is left nil.
func (c *OKXConnector) FetchSpotBalances(ctx context.Context) ([]entity.Balance, error) {
	body, err := c.get(ctx, okxBalanceEndpoint)
	if err != nil {
		return nil, err
	}

	balances, err := parseOKXBalances(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("fetched OKX balances", zap.Int("count", len(balances)))
	return balances, nil
}

type okxResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Details []okxBalanceDetail `json:"details"`
	} `json:"data"`
}

// okxBalanceDetail omits the valuation fields OKX returns (eq, totalEq,
// upl): only quantities survive into persistence.
type okxBalanceDetail struct {
	Ccy       string `json:"ccy"`
	Bal       string `json:"bal"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
}

func parseOKXBalances(body []byte) ([]entity.Balance, error) {
	var parsed okxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "parse OKX response")
	}
	if parsed.Code != "0" {
		return nil, errors.Errorf("OKX API error: %s - %s", parsed.Code, parsed.Msg)
	}

	var balances []entity.Balance
	for _, item := range parsed.Data {
		for _, detail := range item.Details {
			if !isPositive(detail.Bal) {
				continue
			}
			balances = append(balances, entity.Balance{
				Asset:     detail.Ccy,
				Quantity:  detail.Bal,
				Available: detail.AvailBal,
				Frozen:    detail.FrozenBal,
			})
		}
	}
	return balances, nil
}
