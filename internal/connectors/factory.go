package connectors

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
)

// Decrypter opens encrypted account credentials. Implemented by
// secrets.Cipher; tests plug in a passthrough.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Factory builds the right Connector for an account and labels it with a
// source name ("okx", "binance", "bybit", "evm", "solana") that ends up on
// ledger transactions.
//
// All connectors produced by one Factory share its three rate limiters, so
// concurrent syncs still respect the per-system-class budgets.
type Factory struct {
	chains    ChainSource
	decrypter Decrypter
	logger    *zap.Logger

	exchangeLimiter *ratelimit.Limiter
	evmLimiter      *ratelimit.Limiter
	solanaLimiter   *ratelimit.Limiter

	solanaRPCURL string
}

// NewFactory wires a connector factory. chains may be nil (built-in
// registries are used); solanaRPCURL may be empty (public mainnet endpoint).
func NewFactory(chains ChainSource, decrypter Decrypter, solanaRPCURL string, logger *zap.Logger) *Factory {
	return &Factory{
		chains:          chains,
		decrypter:       decrypter,
		logger:          logger,
		exchangeLimiter: ratelimit.ForExchange(),
		evmLimiter:      ratelimit.ForEVMRPC(),
		solanaLimiter:   ratelimit.ForSolanaRPC(),
		solanaRPCURL:    solanaRPCURL,
	}
}

// Close releases the shared rate limiters. Connectors built by this factory
// must not be used afterwards.
func (f *Factory) Close() {
	f.exchangeLimiter.Close()
	f.evmLimiter.Close()
	f.solanaLimiter.Close()
}

// ForAccount dispatches on account type and exchange name. A misconfigured
// account (missing credentials, unknown exchange, bad address) returns a
// descriptive error; the orchestrator records it as a failed sync.
func (f *Factory) ForAccount(account *entity.Account) (Connector, string, error) {
	switch account.AccountType {
	case entity.AccountTypeExchange:
		return f.forExchange(account)
	case entity.AccountTypeWallet:
		return f.forWallet(account)
	default:
		return nil, "", errors.Errorf("unsupported account type: %s", account.AccountType)
	}
}

func (f *Factory) forExchange(account *entity.Account) (Connector, string, error) {
	if account.ExchangeName == nil {
		return nil, "", errors.New("exchange account has no exchange name")
	}
	exchange := strings.ToLower(*account.ExchangeName)

	apiKey, err := f.openCredential(account.APIKeyEncrypted, "api key")
	if err != nil {
		return nil, "", err
	}
	apiSecret, err := f.openCredential(account.APISecretEncrypted, "api secret")
	if err != nil {
		return nil, "", err
	}

	switch exchange {
	case "okx":
		passphrase, err := f.openCredential(account.PassphraseEncrypted, "passphrase")
		if err != nil {
			return nil, "", err
		}
		return NewOKXConnector(apiKey, apiSecret, passphrase, f.exchangeLimiter, f.logger), "okx", nil
	case "binance":
		return NewBinanceConnector(apiKey, apiSecret, f.exchangeLimiter, f.logger), "binance", nil
	case "bybit":
		return NewBybitConnector(apiKey, apiSecret, f.exchangeLimiter, f.logger), "bybit", nil
	default:
		return nil, "", errors.Errorf("unsupported exchange: %s", exchange)
	}
}

func (f *Factory) forWallet(account *entity.Account) (Connector, string, error) {
	if account.WalletAddress == nil || *account.WalletAddress == "" {
		return nil, "", errors.New("wallet account has no address")
	}
	address := *account.WalletAddress

	if account.ExchangeName != nil && strings.EqualFold(*account.ExchangeName, "solana") {
		tokenMap := LoadSolanaTokenMap(f.chains, f.logger)
		return NewSolanaConnector(address, f.solanaRPCURL, tokenMap, f.solanaLimiter, f.logger), "solana", nil
	}

	chains := FilterEnabledChains(LoadEVMChains(f.chains, f.logger), account.EnabledChains, f.logger)
	connector, err := NewEVMConnector(address, chains, f.evmLimiter, f.logger)
	if err != nil {
		return nil, "", err
	}
	return connector, "evm", nil
}

func (f *Factory) openCredential(encrypted *string, name string) (string, error) {
	if encrypted == nil || *encrypted == "" {
		return "", errors.Errorf("missing %s", name)
	}
	if f.decrypter == nil {
		return *encrypted, nil
	}

	plain, err := f.decrypter.Decrypt(*encrypted)
	if err != nil {
		return "", errors.Wrapf(err, "decrypt %s", name)
	}
	return plain, nil
}
