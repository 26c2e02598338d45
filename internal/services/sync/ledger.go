// Package sync ties connectors, normalization and the holdings ledger into
// the per-account synchronization flow.
package sync

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/identity"
)

// LedgerStore is the persistence the ledger needs. Implemented by
// storage.HoldingRepository; tests use an in-memory version.
type LedgerStore interface {
	// FindHolding returns nil when (account, asset) has never been seen.
	FindHolding(ctx context.Context, accountID uuid.UUID, assetSymbol string) (*entity.Holding, error)
	// RecordChange persists the holding's new quantity and its audit
	// transaction atomically.
	RecordChange(ctx context.Context, holding *entity.Holding, txn *entity.HoldingTransaction) error
}

// Ledger reconciles fetched balances against stored holdings, maintaining
// the append-only transaction trail.
//
// Ledger writes are best-effort: a failed write is logged and the batch
// continues. The denormalized account snapshot is the authoritative record
// of a sync; the ledger is the audit trail.
type Ledger struct {
	store    LedgerStore
	resolver *identity.Resolver
	logger   *zap.Logger
}

// NewLedger builds a ledger. resolver may be nil; when set, each transaction
// carries the canonical-asset resolution of its symbol as metadata, so
// downstream consumers can act on unknown tokens without re-resolving.
func NewLedger(store LedgerStore, resolver *identity.Resolver, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, resolver: resolver, logger: logger}
}

// Reconcile applies one batch of balances to an account's holdings and
// returns how many ledger changes were written.
//
// Per asset: a holding is created on first sighting (quantity_before "0")
// and updated when the quantity changed. An unchanged quantity writes
// nothing, not even a transaction row. Holdings for assets absent from the
// batch are never deleted.
func (l *Ledger) Reconcile(ctx context.Context, accountID uuid.UUID, source string, balances []entity.Balance) int {
	applied := 0
	for _, balance := range balances {
		changed, err := l.reconcileOne(ctx, accountID, source, balance)
		if err != nil {
			l.logger.Error("ledger write failed, continuing batch",
				zap.Stringer("account_id", accountID),
				zap.String("asset", balance.Asset),
				zap.Error(err))
			continue
		}
		if changed {
			applied++
		}
	}
	return applied
}

func (l *Ledger) reconcileOne(ctx context.Context, accountID uuid.UUID, source string, balance entity.Balance) (bool, error) {
	after, err := decimal.NewFromString(balance.Quantity)
	if err != nil {
		l.logger.Warn("unparseable quantity, skipping ledger entry",
			zap.String("asset", balance.Asset),
			zap.String("quantity", balance.Quantity),
			zap.Error(err))
		return false, nil
	}

	holding, err := l.store.FindHolding(ctx, accountID, balance.Asset)
	if err != nil {
		return false, err
	}

	before := decimal.Zero
	if holding != nil {
		// an unparseable stored quantity is treated as zero so the asset
		// can recover on this sync
		if b, err := decimal.NewFromString(holding.Quantity); err == nil {
			before = b
		} else {
			l.logger.Warn("corrupt stored quantity, treating as zero",
				zap.Stringer("holding_id", holding.ID),
				zap.String("quantity", holding.Quantity))
		}
	}

	delta := after.Sub(before)
	if holding != nil && delta.IsZero() {
		return false, nil
	}

	if holding == nil {
		holding = &entity.Holding{
			AccountID:   accountID,
			AssetSymbol: balance.Asset,
		}
	}
	holding.Quantity = after.String()

	txn := &entity.HoldingTransaction{
		QuantityBefore:  before.String(),
		QuantityAfter:   after.String(),
		QuantityChange:  delta.String(),
		TransactionType: entity.TransactionTypeSync,
		Source:          source,
		Metadata:        l.resolveMetadata(balance.Asset),
	}

	if err := l.store.RecordChange(ctx, holding, txn); err != nil {
		return false, err
	}

	l.logger.Debug("holding reconciled",
		zap.Stringer("account_id", accountID),
		zap.String("asset", balance.Asset),
		zap.String("before", txn.QuantityBefore),
		zap.String("after", txn.QuantityAfter))
	return true, nil
}

// resolveMetadata attaches canonical-asset provenance to a transaction. An
// unresolved symbol is recorded as such; it never blocks the write.
func (l *Ledger) resolveMetadata(assetSymbol string) []byte {
	if l.resolver == nil {
		return nil
	}

	res := l.resolver.FromSymbol(assetSymbol)
	var meta map[string]any
	if res.IsMapped() {
		meta = map[string]any{
			"asset_id":       res.Identity.AssetID,
			"symbol":         res.Identity.Symbol,
			"name":           res.Identity.Name,
			"mapping_source": res.Identity.MappingSource,
		}
	} else {
		l.logger.Info("asset symbol did not resolve to a canonical asset",
			zap.String("asset", assetSymbol),
			zap.String("context", res.Context))
		meta = map[string]any{
			"unresolved":      true,
			"identifier_type": res.IdentifierType,
			"context":         res.Context,
		}
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return payload
}
