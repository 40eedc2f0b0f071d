package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Repository manages persistence for the ledger head and its entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Head(ctx context.Context, key string) (*models.LedgerHead, error)
	HeadForUpdate(ctx context.Context, key string) (*models.LedgerHead, error)
	CreateHead(ctx context.Context, head *models.LedgerHead) error
	AdvanceHead(ctx context.Context, key string, expected, next int64, balance decimal.Decimal, at time.Time) (bool, error)
	CreateEntry(ctx context.Context, entry *models.AccountingEntry) error
	ListEntries(ctx context.Context, key string, afterSequence int64, limit int) ([]models.AccountingEntry, error)
	LatestEntries(ctx context.Context, key string, limit int) ([]models.AccountingEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Head returns nil without error when the ledger has never been written.
func (r *repository) Head(ctx context.Context, key string) (*models.LedgerHead, error) {
	return r.head(r.db.WithContext(ctx), key)
}

// HeadForUpdate locks the head row until the surrounding transaction ends.
// SQLite ignores the locking clause; its writers are serialized by the file lock.
func (r *repository) HeadForUpdate(ctx context.Context, key string) (*models.LedgerHead, error) {
	return r.head(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (r *repository) head(q *gorm.DB, key string) (*models.LedgerHead, error) {
	var head models.LedgerHead
	err := q.Where("ledger_key = ?", key).Take(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &head, nil
}

func (r *repository) CreateHead(ctx context.Context, head *models.LedgerHead) error {
	return r.db.WithContext(ctx).Create(head).Error
}

// AdvanceHead moves the head from expected to next. It reports false when
// another writer advanced the head first.
func (r *repository) AdvanceHead(ctx context.Context, key string, expected, next int64, balance decimal.Decimal, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerHead{}).
		Where("ledger_key = ? AND sequence = ?", key, expected).
		Updates(map[string]any{
			"sequence":   next,
			"balance":    balance,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.AccountingEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, key string, afterSequence int64, limit int) ([]models.AccountingEntry, error) {
	var entries []models.AccountingEntry
	q := r.db.WithContext(ctx).
		Where("ledger_key = ? AND sequence > ?", key, afterSequence).
		Order("sequence ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// LatestEntries returns the newest entries, oldest first.
func (r *repository) LatestEntries(ctx context.Context, key string, limit int) ([]models.AccountingEntry, error) {
	var entries []models.AccountingEntry
	if err := r.db.WithContext(ctx).
		Where("ledger_key = ?", key).
		Order("sequence DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
