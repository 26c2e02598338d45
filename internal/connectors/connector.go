// Package connectors fetches account balances from heterogeneous external
// sources: HMAC-signed exchange REST APIs (OKX, Binance, Bybit), EVM
// JSON-RPC across several chains, and Solana JSON-RPC.
//
// Every connector funnels its gated network calls through a shared
// ratelimit.Limiter for its system class, reports partial results instead of
// failing a whole fetch on a single bad unit, and returns quantity-only
// Balance DTOs for the ledger to reconcile.
package connectors

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hodlsync/hodlsync/internal/entity"
)

// Connector is the single capability every balance source implements.
type Connector interface {
	// FetchSpotBalances returns all non-zero balances visible to the
	// account. Implementations skip units they cannot read (a chain, a
	// token, a mint) and only fail when nothing could be fetched at all.
	FetchSpotBalances(ctx context.Context) ([]entity.Balance, error)
}

// isPositive reports whether a decimal string parses to a value > 0.
// Unparseable values are treated as zero and dropped by callers.
func isPositive(quantity string) bool {
	d, err := decimal.NewFromString(quantity)
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func uint8Ptr(v uint8) *uint8 { return &v }
