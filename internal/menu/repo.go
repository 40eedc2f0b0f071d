package menu

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/repo"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Repository manages persistence for menu items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, name string) (*models.MenuItem, error)
	GetForUpdate(ctx context.Context, name string) (*models.MenuItem, error)
	List(ctx context.Context) ([]models.MenuItem, error)
	Create(ctx context.Context, item *models.MenuItem) error
	Update(ctx context.Context, item *models.MenuItem) error
	CountLineItems(ctx context.Context, name string) (int64, error)
	DeleteWithRecipe(ctx context.Context, name string) error
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

func (r *repository) Get(ctx context.Context, name string) (*models.MenuItem, error) {
	return repo.TakeOrNil[models.MenuItem](r.DB(ctx), "name = ?", name)
}

func (r *repository) GetForUpdate(ctx context.Context, name string) (*models.MenuItem, error) {
	return repo.TakeOrNil[models.MenuItem](r.ForUpdate(ctx), "name = ?", name)
}

func (r *repository) List(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := r.DB(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Create(ctx context.Context, item *models.MenuItem) error {
	return r.DB(ctx).Create(item).Error
}

// Update writes the mutable attributes; zero values are written too.
func (r *repository) Update(ctx context.Context, item *models.MenuItem) error {
	return r.DB(ctx).
		Model(&models.MenuItem{}).
		Where("name = ?", item.Name).
		Updates(map[string]any{
			"size":     item.Size,
			"category": item.Category,
			"price":    item.Price,
			"is_hot":   item.IsHot,
		}).Error
}

func (r *repository) CountLineItems(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.OrderLineItem{}).
		Where("menu_item_name = ?", name).
		Count(&count).Error
	return count, err
}

// DeleteWithRecipe removes the menu item together with its recipe, ingredients,
// preparation steps and promotion placements. Callers run it inside a transaction.
func (r *repository) DeleteWithRecipe(ctx context.Context, name string) error {
	q := r.DB(ctx)
	recipeIDs := q.Model(&models.Recipe{}).Select("id").Where("menu_item_name = ?", name)
	if err := q.Where("recipe_id IN (?)", recipeIDs).Delete(&models.PreparationStep{}).Error; err != nil {
		return err
	}
	if err := q.Where("recipe_id IN (?)", recipeIDs).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return err
	}
	if err := q.Where("menu_item_name = ?", name).Delete(&models.Recipe{}).Error; err != nil {
		return err
	}
	if err := q.Where("menu_item_name = ?", name).Delete(&models.PromotionItem{}).Error; err != nil {
		return err
	}
	return q.Where("name = ?", name).Delete(&models.MenuItem{}).Error
}
