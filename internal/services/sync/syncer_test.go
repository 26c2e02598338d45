package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/connectors"
	"github.com/hodlsync/hodlsync/internal/entity"
)

type memAccountStore struct {
	accounts    map[uuid.UUID]*entity.Account
	snapshots   map[uuid.UUID][]entity.AccountHolding
	syncedAt    map[uuid.UUID]time.Time
	listErr     error
	snapshotErr error
}

func newMemAccountStore(accounts ...*entity.Account) *memAccountStore {
	s := &memAccountStore{
		accounts:  make(map[uuid.UUID]*entity.Account),
		snapshots: make(map[uuid.UUID][]entity.AccountHolding),
		syncedAt:  make(map[uuid.UUID]time.Time),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (m *memAccountStore) ByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	return m.accounts[id], nil
}

func (m *memAccountStore) ActiveByUser(_ context.Context, userID uuid.UUID) ([]entity.Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []entity.Account
	for _, a := range m.accounts {
		if a.UserID == userID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAccountStore) SaveSnapshot(_ context.Context, id uuid.UUID, holdings []entity.AccountHolding, syncedAt time.Time) error {
	if m.snapshotErr != nil {
		return m.snapshotErr
	}
	m.snapshots[id] = holdings
	m.syncedAt[id] = syncedAt
	return nil
}

type stubConnector struct {
	balances []entity.Balance
	err      error
}

func (c *stubConnector) FetchSpotBalances(context.Context) ([]entity.Balance, error) {
	return c.balances, c.err
}

type stubFactory struct {
	connector connectors.Connector
	source    string
	err       error
}

func (f *stubFactory) ForAccount(*entity.Account) (connectors.Connector, string, error) {
	return f.connector, f.source, f.err
}

func activeAccount() *entity.Account {
	return &entity.Account{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Name:     "main",
		IsActive: true,
	}
}

func newTestSyncer(accounts *memAccountStore, factory ConnectorFactory, store *memLedgerStore) *Syncer {
	return NewSyncer(accounts, factory, NewLedger(store, nil, zap.NewNop()), nil, zap.NewNop())
}

func TestSyncAccountFirstSync(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	store := newMemLedgerStore()
	factory := &stubFactory{
		connector: &stubConnector{balances: []entity.Balance{
			{Asset: "BTC", Quantity: "1.5"},
			{Asset: "ETH", Quantity: "10.0"},
		}},
		source: "okx",
	}
	s := newTestSyncer(accounts, factory, store)

	result := s.SyncAccount(context.Background(), account)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 2, result.HoldingsCount)
	assert.Empty(t, result.Error)

	// two holdings, each with one transaction from zero
	btc := store.holdings[ledgerKey(account.ID, "BTC")]
	require.NotNil(t, btc)
	assert.Equal(t, "1.5", btc.Quantity)
	require.Len(t, store.txnsFor(account.ID, "BTC"), 1)
	assert.Equal(t, "0", store.txnsFor(account.ID, "BTC")[0].QuantityBefore)
	require.Len(t, store.txnsFor(account.ID, "ETH"), 1)

	// quantity-only snapshot, canonical decimal text
	snapshot := accounts.snapshots[account.ID]
	assert.Equal(t, []entity.AccountHolding{
		{Asset: "BTC", Quantity: "1.5"},
		{Asset: "ETH", Quantity: "10"},
	}, snapshot)
	assert.False(t, accounts.syncedAt[account.ID].IsZero())
}

func TestSyncAccountSecondSyncOnlyChangedAsset(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	store := newMemLedgerStore()
	connector := &stubConnector{balances: []entity.Balance{
		{Asset: "BTC", Quantity: "1.5"},
		{Asset: "ETH", Quantity: "10.0"},
	}}
	s := newTestSyncer(accounts, &stubFactory{connector: connector, source: "okx"}, store)

	require.True(t, s.SyncAccount(context.Background(), account).Success)

	connector.balances = []entity.Balance{
		{Asset: "BTC", Quantity: "2.0"},
		{Asset: "ETH", Quantity: "10.0"},
	}
	result := s.SyncAccount(context.Background(), account)
	require.True(t, result.Success)

	btcTxns := store.txnsFor(account.ID, "BTC")
	require.Len(t, btcTxns, 2)
	assert.Equal(t, "1.5", btcTxns[1].QuantityBefore)
	assert.Equal(t, "2", btcTxns[1].QuantityAfter)
	assert.Equal(t, "0.5", btcTxns[1].QuantityChange)
	assert.Len(t, store.txnsFor(account.ID, "ETH"), 1, "unchanged asset history untouched")

	assert.Equal(t, []entity.AccountHolding{
		{Asset: "BTC", Quantity: "2"},
		{Asset: "ETH", Quantity: "10"},
	}, accounts.snapshots[account.ID])
}

func TestSyncAccountSnapshotMatchesLedgerText(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	store := newMemLedgerStore()
	factory := &stubFactory{
		connector: &stubConnector{balances: []entity.Balance{
			{Asset: "BTC", Quantity: "2.0"},
		}},
		source: "okx",
	}
	s := newTestSyncer(accounts, factory, store)

	require.True(t, s.SyncAccount(context.Background(), account).Success)

	holding := store.holdings[ledgerKey(account.ID, "BTC")]
	require.NotNil(t, holding)
	snapshot := accounts.snapshots[account.ID]
	require.Len(t, snapshot, 1)
	assert.Equal(t, "2", snapshot[0].Quantity,
		"the snapshot stores canonical decimal text, not the connector's spelling")
	assert.Equal(t, holding.Quantity, snapshot[0].Quantity,
		"snapshot and ledger must agree on the same text for the same value")
}

func TestSyncAccountNormalizesRawQuantities(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	store := newMemLedgerStore()
	eighteen := uint8(18)
	factory := &stubFactory{
		connector: &stubConnector{balances: []entity.Balance{
			{Asset: "ETH-ethereum", Quantity: "1500000000000000000", Available: "1500000000000000000", Frozen: "0", Decimals: &eighteen},
			{Asset: "BTC", Quantity: "0.25"},
		}},
		source: "evm",
	}
	s := newTestSyncer(accounts, factory, store)

	result := s.SyncAccount(context.Background(), account)
	require.True(t, result.Success)

	snapshot := accounts.snapshots[account.ID]
	require.Len(t, snapshot, 2)
	assert.Equal(t, "1.5", snapshot[0].Quantity, "raw wei must be normalized")
	assert.Equal(t, "0.25", snapshot[1].Quantity, "already-decimal values pass through")
	assert.Equal(t, "1.5", store.holdings[ledgerKey(account.ID, "ETH-ethereum")].Quantity)
}

func TestSyncAccountNormalizationFallback(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	store := newMemLedgerStore()
	bad := uint8(18)
	factory := &stubFactory{
		connector: &stubConnector{balances: []entity.Balance{
			{Asset: "WEIRD", Quantity: "not-a-number", Decimals: &bad},
		}},
		source: "evm",
	}
	s := newTestSyncer(accounts, factory, store)

	result := s.SyncAccount(context.Background(), account)
	require.True(t, result.Success, "a normalization failure must not abort the sync")
	assert.Equal(t, "not-a-number", accounts.snapshots[account.ID][0].Quantity,
		"raw value survives when normalization fails")
}

func TestSyncAccountConfigurationFailures(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	s := newTestSyncer(accounts, &stubFactory{err: errors.New("unsupported exchange: kraken")}, newMemLedgerStore())

	result := s.SyncAccount(context.Background(), account)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported exchange")
	assert.Empty(t, accounts.snapshots, "failed sync must not touch the snapshot")
}

func TestSyncAccountFetchFailure(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	factory := &stubFactory{connector: &stubConnector{err: errors.New("connection refused")}, source: "okx"}
	s := newTestSyncer(accounts, factory, newMemLedgerStore())

	result := s.SyncAccount(context.Background(), account)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "fetch balances")
}

func TestSyncAccountSnapshotFailure(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	accounts.snapshotErr = errors.New("db down")
	factory := &stubFactory{
		connector: &stubConnector{balances: []entity.Balance{{Asset: "BTC", Quantity: "1"}}},
		source:    "okx",
	}
	s := newTestSyncer(accounts, factory, newMemLedgerStore())

	result := s.SyncAccount(context.Background(), account)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "save snapshot")
}

func TestSyncAccountInactive(t *testing.T) {
	account := activeAccount()
	account.IsActive = false
	s := newTestSyncer(newMemAccountStore(account), &stubFactory{}, newMemLedgerStore())

	result := s.SyncAccount(context.Background(), account)
	assert.False(t, result.Success)
	assert.Equal(t, "account is inactive", result.Error)
}

func TestSyncAccountByID(t *testing.T) {
	account := activeAccount()
	accounts := newMemAccountStore(account)
	factory := &stubFactory{
		connector: &stubConnector{balances: []entity.Balance{{Asset: "BTC", Quantity: "1"}}},
		source:    "okx",
	}
	s := newTestSyncer(accounts, factory, newMemLedgerStore())

	assert.True(t, s.SyncAccountByID(context.Background(), account.ID).Success)

	missing := s.SyncAccountByID(context.Background(), uuid.New())
	assert.False(t, missing.Success)
	assert.Equal(t, "account not found", missing.Error)
}

func TestSyncUserAccountsContinuesPastFailures(t *testing.T) {
	userID := uuid.New()
	good := activeAccount()
	good.UserID = userID
	broken := activeAccount()
	broken.UserID = userID
	inactiveOther := activeAccount()
	inactiveOther.UserID = userID
	inactiveOther.IsActive = false

	accounts := newMemAccountStore(good, broken, inactiveOther)

	// fail exactly the broken account's connector build
	factory := &accountAwareFactory{
		failFor: broken.ID,
		connector: &stubConnector{balances: []entity.Balance{
			{Asset: "BTC", Quantity: "1"},
		}},
	}
	s := newTestSyncer(accounts, factory, newMemLedgerStore())

	results := s.SyncUserAccounts(context.Background(), userID)
	require.Len(t, results, 2, "inactive accounts are not listed")

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			assert.Equal(t, broken.ID, r.AccountID)
		}
	}
	assert.Equal(t, 1, succeeded)
}

type accountAwareFactory struct {
	failFor   uuid.UUID
	connector connectors.Connector
}

func (f *accountAwareFactory) ForAccount(account *entity.Account) (connectors.Connector, string, error) {
	if account.ID == f.failFor {
		return nil, "", errors.New("missing api key")
	}
	return f.connector, "okx", nil
}
