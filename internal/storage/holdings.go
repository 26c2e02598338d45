package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/hodlsync/hodlsync/internal/entity"
)

// HoldingRepository persists the holdings ledger: current-state rows plus
// their append-only transaction trail.
type HoldingRepository struct {
	db *gorm.DB
}

func NewHoldingRepository(db *gorm.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// FindHolding returns the current-state row for (account, asset), or nil
// when the asset has never been seen on this account.
func (r *HoldingRepository) FindHolding(ctx context.Context, accountID uuid.UUID, assetSymbol string) (*entity.Holding, error) {
	var holding entity.Holding
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND asset_symbol = ?", accountID, assetSymbol).
		First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch holding")
	}
	return &holding, nil
}

// RecordChange writes the holding's new quantity and its audit transaction
// in one database transaction, so the ledger invariant (holding quantity ==
// latest transaction's quantity_after) survives crashes between the two
// writes.
//
// A holding with a nil ID is created; otherwise its quantity is updated.
func (r *HoldingRepository) RecordChange(ctx context.Context, holding *entity.Holding, txn *entity.HoldingTransaction) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if holding.ID == uuid.Nil {
			holding.ID = uuid.New()
			if err := tx.Create(holding).Error; err != nil {
				return errors.Wrap(err, "create holding")
			}
		} else {
			err := tx.Model(&entity.Holding{}).
				Where("id = ?", holding.ID).
				Update("quantity", holding.Quantity).Error
			if err != nil {
				return errors.Wrap(err, "update holding quantity")
			}
		}

		txn.ID = uuid.New()
		txn.HoldingID = holding.ID
		if err := tx.Create(txn).Error; err != nil {
			return errors.Wrap(err, "insert holding transaction")
		}
		return nil
	})
	return err
}

// TransactionsByHolding returns a holding's audit trail, newest first.
func (r *HoldingRepository) TransactionsByHolding(ctx context.Context, holdingID uuid.UUID) ([]entity.HoldingTransaction, error) {
	var txns []entity.HoldingTransaction
	err := r.db.WithContext(ctx).
		Where("holding_id = ?", holdingID).
		Order("created_at DESC").
		Find(&txns).Error
	if err != nil {
		return nil, errors.Wrap(err, "list holding transactions")
	}
	return txns, nil
}
