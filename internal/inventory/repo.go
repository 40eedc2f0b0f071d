package inventory

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Repository manages persistence for inventory items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, name string) (*models.InventoryItem, error)
	GetForUpdate(ctx context.Context, name string) (*models.InventoryItem, error)
	List(ctx context.Context) ([]models.InventoryItem, error)
	Create(ctx context.Context, item *models.InventoryItem) error
	UpdateAttributes(ctx context.Context, name string, unit string, costPerUnit decimal.Decimal) error
	SetQuantity(ctx context.Context, name string, quantity decimal.Decimal) error
	Delete(ctx context.Context, name string) error
	CountRecipeReferences(ctx context.Context, name string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Get returns nil without error when the item does not exist.
func (r *repository) Get(ctx context.Context, name string) (*models.InventoryItem, error) {
	return r.get(r.db.WithContext(ctx), name)
}

// GetForUpdate row-locks the item for the rest of the transaction on Postgres.
func (r *repository) GetForUpdate(ctx context.Context, name string) (*models.InventoryItem, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), name)
}

func (r *repository) get(q *gorm.DB, name string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := q.Where("name = ?", name).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateAttributes(ctx context.Context, name string, unit string, costPerUnit decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"unit":          unit,
			"cost_per_unit": costPerUnit,
		}).Error
}

func (r *repository) SetQuantity(ctx context.Context, name string, quantity decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("name = ?", name).
		Update("quantity", quantity).Error
}

func (r *repository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.InventoryItem{}).Error
}

func (r *repository) CountRecipeReferences(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RecipeIngredient{}).
		Where("inventory_item_name = ?", name).
		Count(&count).Error
	return count, err
}
