// Command hodlsync synchronizes crypto holdings from exchanges (OKX,
// Binance, Bybit) and on-chain wallets (EVM chains, Solana) into a Postgres
// ledger with a full audit trail.
//
// Usage:
//
//	hodlsync --setup                 interactive first-run wizard
//	hodlsync --config config.yaml    sync on an interval
//	hodlsync --once --user <uuid>    one sync round for one user
//
// Environment:
//
//	DATABASE_URL              postgres DSN (unless given via flag/yaml)
//	HODLSYNC_ENCRYPTION_KEY   hex key sealing stored API credentials
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/config"
	"github.com/hodlsync/hodlsync/internal/connectors"
	"github.com/hodlsync/hodlsync/internal/identity"
	"github.com/hodlsync/hodlsync/internal/secrets"
	"github.com/hodlsync/hodlsync/internal/services/sync"
	"github.com/hodlsync/hodlsync/internal/setup"
	"github.com/hodlsync/hodlsync/internal/storage"
	"github.com/hodlsync/hodlsync/internal/storage/journal"
)

func main() {
	cfg, flags, err := config.Get()
	if flags != nil && flags.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	jrnl, err := journal.New(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open sync journal", zap.Error(err))
	}
	defer jrnl.Close()

	cipher, err := secrets.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("invalid encryption key", zap.Error(err))
	}
	if cipher == nil {
		logger.Warn("no encryption key configured, credentials are stored in plain text")
	}

	accounts := storage.NewAccountRepository(db)
	catalog := storage.NewCatalog(db)

	factory := connectors.NewFactory(catalog, cipher, cfg.SolanaRPCURL, logger)
	defer factory.Close()

	resolver := identity.NewResolver(catalog, logger)
	ledger := sync.NewLedger(storage.NewHoldingRepository(db), resolver, logger)
	syncer := sync.NewSyncer(accounts, factory, ledger, jrnl, logger)

	var onlyUser *uuid.UUID
	if flags.UserID != "" {
		id, err := uuid.Parse(flags.UserID)
		if err != nil {
			logger.Fatal("invalid --user id", zap.String("user", flags.UserID), zap.Error(err))
		}
		onlyUser = &id
	}

	runRound(ctx, logger, accounts, syncer, onlyUser)
	if flags.Once {
		return
	}

	logger.Info("sync loop started", zap.Duration("interval", cfg.SyncInterval))
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			runRound(ctx, logger, accounts, syncer, onlyUser)
		}
	}
}

// runRound syncs one user, or every user with active accounts.
func runRound(ctx context.Context, logger *zap.Logger, accounts *storage.AccountRepository, syncer *sync.Syncer, onlyUser *uuid.UUID) {
	if onlyUser != nil {
		syncer.SyncUserAccounts(ctx, *onlyUser)
		return
	}

	userIDs, err := accounts.ActiveUserIDs(ctx)
	if err != nil {
		logger.Error("failed to list users", zap.Error(err))
		return
	}
	if len(userIDs) == 0 {
		logger.Info("no active accounts to sync")
		return
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		syncer.SyncUserAccounts(ctx, userID)
	}
}
