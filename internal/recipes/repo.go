package recipes

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/repo"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Repository manages recipes, their ingredients and preparation steps.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uint) (*models.Recipe, error)
	FindByMenuItem(ctx context.Context, menuItemName string) (*models.Recipe, error)
	Create(ctx context.Context, recipe *models.Recipe) error
	MenuItemExists(ctx context.Context, name string) (bool, error)
	InventoryItemUnit(ctx context.Context, name string) (string, bool, error)
	ListIngredients(ctx context.Context, recipeID uint) ([]Ingredient, error)
	HasIngredient(ctx context.Context, recipeID uint, inventoryItemName string) (bool, error)
	CreateIngredient(ctx context.Context, ingredient *models.RecipeIngredient) error
	ListSteps(ctx context.Context, recipeID uint) ([]models.PreparationStep, error)
	CreateStep(ctx context.Context, step *models.PreparationStep) error
	NextIngredientPosition(ctx context.Context, recipeID uint) (int, error)
	NextStepPosition(ctx context.Context, recipeID uint) (int, error)
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

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Recipe, error) {
	return repo.TakeOrNil[models.Recipe](r.DB(ctx), "id = ?", id)
}

func (r *repository) FindByMenuItem(ctx context.Context, menuItemName string) (*models.Recipe, error) {
	return repo.TakeOrNil[models.Recipe](r.DB(ctx), "menu_item_name = ?", menuItemName)
}

func (r *repository) Create(ctx context.Context, recipe *models.Recipe) error {
	return r.DB(ctx).Create(recipe).Error
}

func (r *repository) MenuItemExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, &models.MenuItem{}, "name = ?", name)
}

// InventoryItemUnit reports the unit of an inventory item and whether it exists.
func (r *repository) InventoryItemUnit(ctx context.Context, name string) (string, bool, error) {
	item, err := repo.TakeOrNil[models.InventoryItem](r.DB(ctx), "name = ?", name)
	if err != nil || item == nil {
		return "", false, err
	}
	return item.Unit, true, nil
}

func (r *repository) HasIngredient(ctx context.Context, recipeID uint, inventoryItemName string) (bool, error) {
	return r.exists(ctx, &models.RecipeIngredient{}, "recipe_id = ? AND inventory_item_name = ?", recipeID, inventoryItemName)
}

func (r *repository) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListIngredients returns the recipe lines in insertion order, each in the
// unit the recipe records for it.
func (r *repository) ListIngredients(ctx context.Context, recipeID uint) ([]Ingredient, error) {
	var rows []Ingredient
	err := r.DB(ctx).
		Model(&models.RecipeIngredient{}).
		Select("inventory_item_name, quantity AS quantity_per_unit, unit").
		Where("recipe_id = ?", recipeID).
		Order("position ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateIngredient(ctx context.Context, ingredient *models.RecipeIngredient) error {
	return r.DB(ctx).Create(ingredient).Error
}

func (r *repository) ListSteps(ctx context.Context, recipeID uint) ([]models.PreparationStep, error) {
	var steps []models.PreparationStep
	err := r.DB(ctx).Where("recipe_id = ?", recipeID).Order("position ASC").Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *repository) CreateStep(ctx context.Context, step *models.PreparationStep) error {
	return r.DB(ctx).Create(step).Error
}

func (r *repository) NextIngredientPosition(ctx context.Context, recipeID uint) (int, error) {
	return r.nextPosition(ctx, &models.RecipeIngredient{}, recipeID)
}

func (r *repository) NextStepPosition(ctx context.Context, recipeID uint) (int, error) {
	return r.nextPosition(ctx, &models.PreparationStep{}, recipeID)
}

func (r *repository) nextPosition(ctx context.Context, model any, recipeID uint) (int, error) {
	var highest int
	err := r.DB(ctx).
		Model(model).
		Select("COALESCE(MAX(position), 0)").
		Where("recipe_id = ?", recipeID).
		Scan(&highest).Error
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}
