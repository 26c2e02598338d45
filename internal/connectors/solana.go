package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/normalize"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
	"github.com/hodlsync/hodlsync/pkg/retrier"
)

// SolanaNativeDecimals: 1 SOL = 1_000_000_000 lamports.
const SolanaNativeDecimals uint8 = 9

// SolanaTokenProgramID is the standard SPL token program.
const SolanaTokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// DefaultSolanaRPCURL is used when no endpoint is configured.
const DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

// SolanaConnector fetches native SOL and SPL token balances with two raw
// JSON-RPC calls (getBalance, getTokenAccountsByOwner), no Solana SDK in
// between. Token accounts are filtered against a mint->symbol map;
// unrecognised mints are skipped.
type SolanaConnector struct {
	walletAddress string
	rpcURL        string
	tokenMap      map[string]string

	httpClient *http.Client
	limiter    *ratelimit.Limiter
	retry      *retrier.Retrier
	logger     *zap.Logger
}

// NewSolanaConnector creates a connector for a base58 wallet address.
// tokenMap maps mint address to symbol; nil or empty falls back to the
// built-in curated list.
func NewSolanaConnector(walletAddress, rpcURL string, tokenMap map[string]string, limiter *ratelimit.Limiter, logger *zap.Logger) *SolanaConnector {
	if rpcURL == "" {
		rpcURL = DefaultSolanaRPCURL
	}
	if len(tokenMap) == 0 {
		tokenMap = LoadSolanaTokenMap(nil, logger)
	}

	return &SolanaConnector{
		walletAddress: walletAddress,
		rpcURL:        rpcURL,
		tokenMap:      tokenMap,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       limiter,
		retry:         retrier.New(retrier.WithMaxRetries(2), retrier.WithBaseDelay(200*time.Millisecond)),
		logger:        logger,
	}
}

// FetchSpotBalances returns the native SOL balance plus every recognised,
// non-zero SPL token balance. Either half failing is a partial failure:
// logged, the other half still returned.
func (c *SolanaConnector) FetchSpotBalances(ctx context.Context) ([]entity.Balance, error) {
	c.logger.Info("fetching Solana balances",
		zap.String("wallet", c.walletAddress),
		zap.Int("known_tokens", len(c.tokenMap)))

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire Solana rate limit")
	}
	defer release()

	var balances []entity.Balance

	if native, err := c.fetchNativeBalance(ctx); err != nil {
		c.logger.Error("failed to fetch SOL balance", zap.Error(err))
	} else if native != nil {
		balances = append(balances, *native)
	}

	if tokens, err := c.fetchTokenBalances(ctx); err != nil {
		c.logger.Error("failed to fetch SPL token balances", zap.Error(err))
	} else {
		balances = append(balances, tokens...)
	}

	c.logger.Info("fetched Solana balances", zap.Int("count", len(balances)))
	return balances, nil
}

func (c *SolanaConnector) rpcCall(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return errors.Wrap(err, "marshal RPC request")
	}

	body, err := retrier.DoWithData(c.retry, ctx, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("solana RPC error: %s - %s", resp.Status, data)
		}
		return data, nil
	})
	if err != nil {
		return errors.Wrapf(err, "%s call failed", method)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return errors.Wrapf(err, "parse %s response", method)
	}
	return nil
}

func (c *SolanaConnector) fetchNativeBalance(ctx context.Context) (*entity.Balance, error) {
	var resp struct {
		Result struct {
			Value uint64 `json:"value"`
		} `json:"result"`
	}
	if err := c.rpcCall(ctx, "getBalance", []any{c.walletAddress}, &resp); err != nil {
		return nil, err
	}

	lamports := resp.Result.Value
	if lamports == 0 {
		return nil, nil
	}

	raw := strconv.FormatUint(lamports, 10)
	quantity, err := normalize.TokenBalance(raw, SolanaNativeDecimals)
	if err != nil {
		// fall back to the raw lamport count rather than dropping the asset
		c.logger.Warn("failed to normalize SOL balance", zap.String("raw", raw), zap.Error(err))
		quantity = raw
	}

	return &entity.Balance{
		Asset:     "SOL-solana",
		Quantity:  quantity,
		Available: quantity,
		Frozen:    "0",
		Decimals:  uint8Ptr(SolanaNativeDecimals),
	}, nil
}

type solanaTokenAccountsResult struct {
	Result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount         string `json:"amount"`
								UIAmountString string `json:"uiAmountString"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
}

func (c *SolanaConnector) fetchTokenBalances(ctx context.Context) ([]entity.Balance, error) {
	var resp solanaTokenAccountsResult
	params := []any{
		c.walletAddress,
		map[string]string{"programId": SolanaTokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.rpcCall(ctx, "getTokenAccountsByOwner", params, &resp); err != nil {
		return nil, err
	}

	return c.filterTokenAccounts(resp), nil
}

// filterTokenAccounts keeps recognised mints with non-zero amounts. The RPC
// already normalizes uiAmountString, so no decimals are attached.
func (c *SolanaConnector) filterTokenAccounts(resp solanaTokenAccountsResult) []entity.Balance {
	var balances []entity.Balance
	for _, entry := range resp.Result.Value {
		info := entry.Account.Data.Parsed.Info
		if info.Mint == "" {
			continue
		}

		symbol, ok := c.tokenMap[info.Mint]
		if !ok {
			c.logger.Debug("skipping unrecognised mint", zap.String("mint", info.Mint))
			continue
		}

		uiAmount := info.TokenAmount.UIAmountString
		if uiAmount == "0" || info.TokenAmount.Amount == "0" || uiAmount == "" {
			continue
		}

		balances = append(balances, entity.Balance{
			Asset:     symbol + "-solana",
			Quantity:  uiAmount,
			Available: uiAmount,
			Frozen:    "0",
		})
	}
	return balances
}
