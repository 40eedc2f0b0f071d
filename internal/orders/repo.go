package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/repo"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
)

// Repository persists orders and reads the menu rows an order prices against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMenuItem(ctx context.Context, name string) (*models.MenuItem, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindOrder(ctx context.Context, id uint) (*models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.Order, error)
	ListLineItems(ctx context.Context, orderIDs []uint) ([]models.OrderLineItem, error)
	FindLedgerEntries(ctx context.Context, orderIDs []uint) ([]models.AccountingEntry, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindMenuItem(ctx context.Context, name string) (*models.MenuItem, error) {
	return repo.TakeOrNil[models.MenuItem](r.DB(ctx), "name = ?", name)
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, id uint) (*models.Order, error) {
	return repo.TakeOrNil[models.Order](r.DB(ctx), "id = ?", id)
}

// ListOrders returns the newest orders first.
func (r *repository) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).Order("id DESC").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListLineItems(ctx context.Context, orderIDs []uint) ([]models.OrderLineItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var items []models.OrderLineItem
	err := r.DB(ctx).
		Where("order_id IN ?", orderIDs).
		Order("order_id ASC, position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindLedgerEntries(ctx context.Context, orderIDs []uint) ([]models.AccountingEntry, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var entries []models.AccountingEntry
	err := r.DB(ctx).
		Where("kind = ? AND order_id IN ?", enums.LedgerEntryOrder, orderIDs).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
