package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/hodlsync/hodlsync/internal/entity"
)

// AccountRepository reads and mutates accounts. A missing row is returned as
// (nil, nil), not as an error.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// ByID fetches one account.
func (r *AccountRepository) ByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	var account entity.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch account")
	}
	return &account, nil
}

// ActiveByUser lists a user's active accounts in creation order, which is
// also the order they get synced in.
func (r *AccountRepository) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Account, error) {
	var accounts []entity.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list active accounts")
	}
	return accounts, nil
}

// ActiveUserIDs lists every user owning at least one active account.
func (r *AccountRepository) ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("is_active = ?", true).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "list users with active accounts")
	}
	return ids, nil
}

// Create inserts a new account, assigning an id when absent.
func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(account).Error, "create account")
}

// SaveSnapshot overwrites the account's denormalized holdings snapshot and
// stamps last_synced_at. This is the authoritative write of a successful
// sync.
func (r *AccountRepository) SaveSnapshot(ctx context.Context, id uuid.UUID, holdings []entity.AccountHolding, syncedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("id = ?", id).
		Select("holdings", "last_synced_at").
		Updates(entity.Account{Holdings: holdings, LastSyncedAt: &syncedAt}).Error
	return errors.Wrap(err, "save holdings snapshot")
}
