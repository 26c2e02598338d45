package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/connectors"
	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/normalize"
	"github.com/hodlsync/hodlsync/internal/storage/journal"
)

// AccountStore is the account persistence the orchestrator needs.
type AccountStore interface {
	ByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	ActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Account, error)
	// SaveSnapshot overwrites the denormalized holdings snapshot and stamps
	// last_synced_at.
	SaveSnapshot(ctx context.Context, id uuid.UUID, holdings []entity.AccountHolding, syncedAt time.Time) error
}

// ConnectorFactory builds a balance source for an account.
type ConnectorFactory interface {
	ForAccount(account *entity.Account) (connectors.Connector, string, error)
}

// Syncer orchestrates balance synchronization. It never panics or returns an
// error to its caller: every outcome, including misconfiguration, is a
// SyncResult.
type Syncer struct {
	accounts AccountStore
	factory  ConnectorFactory
	ledger   *Ledger
	journal  *journal.Journal
	logger   *zap.Logger

	now func() time.Time
}

// NewSyncer wires the orchestrator. journal may be nil to disable the
// on-disk outcome log.
func NewSyncer(accounts AccountStore, factory ConnectorFactory, ledger *Ledger, jrnl *journal.Journal, logger *zap.Logger) *Syncer {
	return &Syncer{
		accounts: accounts,
		factory:  factory,
		ledger:   ledger,
		journal:  jrnl,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncAccount runs the full pipeline for one account: build connector, fetch
// balances, normalize raw integer quantities, reconcile the ledger, and
// overwrite the account snapshot.
//
// Partial fetches (some chains or tokens failed) still count as success with
// whatever was fetched; only a failure to fetch anything, or to persist the
// snapshot, fails the sync.
func (s *Syncer) SyncAccount(ctx context.Context, account *entity.Account) entity.SyncResult {
	logger := s.logger.With(
		zap.Stringer("account_id", account.ID),
		zap.String("account_name", account.Name))

	if !account.IsActive {
		return s.finish(logger, entity.SyncResult{
			AccountID: account.ID,
			Error:     "account is inactive",
		})
	}

	connector, source, err := s.factory.ForAccount(account)
	if err != nil {
		return s.finish(logger, entity.SyncResult{
			AccountID: account.ID,
			Error:     err.Error(),
		})
	}

	logger.Info("starting sync", zap.String("source", source))

	balances, err := connector.FetchSpotBalances(ctx)
	if err != nil {
		return s.finish(logger, entity.SyncResult{
			AccountID: account.ID,
			Error:     fmt.Sprintf("fetch balances: %v", err),
		})
	}

	balances = s.normalizeBalances(logger, balances)

	applied := s.ledger.Reconcile(ctx, account.ID, source, balances)

	snapshot := lo.Map(balances, func(b entity.Balance, _ int) entity.AccountHolding {
		return entity.AccountHolding{Asset: b.Asset, Quantity: canonicalQuantity(b.Quantity)}
	})
	if err := s.accounts.SaveSnapshot(ctx, account.ID, snapshot, s.now()); err != nil {
		return s.finish(logger, entity.SyncResult{
			AccountID: account.ID,
			Error:     fmt.Sprintf("save snapshot: %v", err),
		})
	}

	logger.Info("sync finished",
		zap.String("source", source),
		zap.Int("holdings", len(balances)),
		zap.Int("ledger_changes", applied))

	return s.finish(logger, entity.SyncResult{
		AccountID:     account.ID,
		Success:       true,
		HoldingsCount: len(balances),
	})
}

// SyncAccountByID loads an account and syncs it.
func (s *Syncer) SyncAccountByID(ctx context.Context, id uuid.UUID) entity.SyncResult {
	account, err := s.accounts.ByID(ctx, id)
	if err != nil {
		return s.finish(s.logger, entity.SyncResult{
			AccountID: id,
			Error:     fmt.Sprintf("load account: %v", err),
		})
	}
	if account == nil {
		return s.finish(s.logger, entity.SyncResult{
			AccountID: id,
			Error:     "account not found",
		})
	}
	return s.SyncAccount(ctx, account)
}

// SyncUserAccounts syncs every active account of a user sequentially, in
// creation order. One failing account never blocks the rest; rate limiting
// happens inside the connectors, not here.
func (s *Syncer) SyncUserAccounts(ctx context.Context, userID uuid.UUID) []entity.SyncResult {
	accounts, err := s.accounts.ActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list user accounts",
			zap.Stringer("user_id", userID), zap.Error(err))
		return nil
	}

	results := make([]entity.SyncResult, 0, len(accounts))
	for i := range accounts {
		results = append(results, s.SyncAccount(ctx, &accounts[i]))
	}

	succeeded := lo.CountBy(results, func(r entity.SyncResult) bool { return r.Success })
	s.logger.Info("user sync finished",
		zap.Stringer("user_id", userID),
		zap.Int("accounts", len(results)),
		zap.Int("succeeded", succeeded))
	return results
}

// canonicalQuantity reduces a quantity to its canonical decimal text
// ("2.0" becomes "2") so the snapshot and the ledger agree on the same
// representation. Unparseable values pass through untouched.
func canonicalQuantity(quantity string) string {
	d, err := decimal.NewFromString(quantity)
	if err != nil {
		return quantity
	}
	return d.String()
}

// normalizeBalances converts raw integer quantities (Decimals set) to
// decimal strings. A conversion failure keeps the raw value rather than
// dropping the asset.
func (s *Syncer) normalizeBalances(logger *zap.Logger, balances []entity.Balance) []entity.Balance {
	for i := range balances {
		b := &balances[i]
		if b.Decimals == nil {
			continue
		}

		normalized, err := normalize.TokenBalance(b.Quantity, *b.Decimals)
		if err != nil {
			logger.Warn("normalization failed, keeping raw value",
				zap.String("asset", b.Asset),
				zap.String("raw", b.Quantity),
				zap.Error(err))
			continue
		}
		b.Quantity = normalized

		if available, err := normalize.TokenBalance(b.Available, *b.Decimals); err == nil {
			b.Available = available
		}
		if frozen, err := normalize.TokenBalance(b.Frozen, *b.Decimals); err == nil {
			b.Frozen = frozen
		}
	}
	return balances
}

// finish journals the result (best-effort) and returns it.
func (s *Syncer) finish(logger *zap.Logger, result entity.SyncResult) entity.SyncResult {
	if !result.Success {
		logger.Warn("sync failed", zap.String("error", result.Error))
	}
	if err := s.journal.Append(result, s.now()); err != nil {
		logger.Warn("failed to journal sync result", zap.Error(err))
	}
	return result
}
