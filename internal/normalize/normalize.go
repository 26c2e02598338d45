// Package normalize converts raw on-chain integer balances into
// human-readable decimal strings.
//
// Most tokens store balances as integers: the real value is
// raw / 10^decimals (18 for ETH and most ERC-20s, 9 for SOL, 8 for BTC,
// 6 for USDC/USDT). All arithmetic is exact decimal math, never floats, so
// an 18-decimal balance keeps every digit.
package normalize

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// maxDecimals caps the supported scale. Beyond it 10^decimals exceeds the
// precision the quantity columns are sized for; no known token comes close.
const maxDecimals = 28

var (
	// ErrInvalidBalance reports an unparseable raw balance string.
	ErrInvalidBalance = errors.New("invalid balance string")
	// ErrOverflow reports a decimals value too large to scale by.
	ErrOverflow = errors.New("arithmetic overflow during normalization")
)

// TokenBalance converts a raw integer balance string to a decimal string,
// dividing by 10^decimals with full precision:
//
//	TokenBalance("1500000000000000000", 18) == "1.5"
//	TokenBalance("1", 18)                  == "0.000000000000000001"
//	TokenBalance("100000000", 8)           == "1"
//
// Callers are expected to fall back to the raw string on error rather than
// abort a whole sync batch.
func TokenBalance(raw string, decimals uint8) (string, error) {
	if int(decimals) > maxDecimals {
		return "", errors.Wrapf(ErrOverflow, "10^%d", decimals)
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidBalance, "%q: %v", raw, err)
	}

	// Shifting the exponent is exact; no division precision applies.
	return balance.Shift(-int32(decimals)).String(), nil
}

// TokenBalanceFixed normalizes and then truncates to displayDecimals places
// for display. Truncates, does not round: "1.999..." at 2 places is "1.99".
func TokenBalanceFixed(raw string, decimals uint8, displayDecimals int32) (string, error) {
	normalized, err := TokenBalance(raw, decimals)
	if err != nil {
		return "", err
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidBalance, "normalized %q: %v", normalized, err)
	}

	return d.Truncate(displayDecimals).StringFixed(displayDecimals), nil
}
