package recipes

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/validation"
)

// Resolver answers which inventory a menu item consumes. The fulfillment
// engine depends on this interface only.
type Resolver interface {
	Resolve(ctx context.Context, menuItemName string) ([]Ingredient, error)
}

// Service resolves and maintains recipes.
type Service interface {
	Resolver
	ResolveTx(ctx context.Context, tx *gorm.DB, menuItemName string) ([]Ingredient, error)
	CreateRecipe(ctx context.Context, menuItemName string) (*models.Recipe, error)
	Get(ctx context.Context, recipeID uint) (*RecipeDetail, error)
	AddIngredient(ctx context.Context, recipeID uint, input AddIngredientInput) (*models.RecipeIngredient, error)
	AddStep(ctx context.Context, recipeID uint, input AddStepInput) (*models.PreparationStep, error)
	Steps(ctx context.Context, recipeID uint) ([]models.PreparationStep, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	db   txRunner
}

func NewService(repo Repository, db txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("recipe repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: db}, nil
}

// Resolve returns the ingredient lines of the menu item's recipe in order.
// A menu item without a recipe is NOT_FOUND; a recipe without ingredients
// resolves to an empty list.
func (s *service) Resolve(ctx context.Context, menuItemName string) ([]Ingredient, error) {
	return s.resolve(ctx, s.repo, menuItemName)
}

// ResolveTx reads through tx so the lines are consistent with the caller's snapshot.
func (s *service) ResolveTx(ctx context.Context, tx *gorm.DB, menuItemName string) ([]Ingredient, error) {
	return s.resolve(ctx, s.repo.WithTx(tx), menuItemName)
}

func (s *service) resolve(ctx context.Context, repo Repository, menuItemName string) ([]Ingredient, error) {
	recipe, err := repo.FindByMenuItem(ctx, strings.TrimSpace(menuItemName))
	if err != nil {
		return nil, db.Classify(err, "load recipe")
	}
	if recipe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no recipe for menu item %q", menuItemName))
	}
	ingredients, err := repo.ListIngredients(ctx, recipe.ID)
	if err != nil {
		return nil, db.Classify(err, "load recipe ingredients")
	}
	if ingredients == nil {
		ingredients = []Ingredient{}
	}
	return ingredients, nil
}

// CreateRecipe returns the menu item's recipe, creating it on first call.
func (s *service) CreateRecipe(ctx context.Context, menuItemName string) (*models.Recipe, error) {
	menuItemName = validation.SanitizeString(menuItemName, 0)
	if menuItemName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item name required")
	}

	var recipe *models.Recipe
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.MenuItemExists(ctx, menuItemName)
		if err != nil {
			return db.Classify(err, "load menu item")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("menu item %q not found", menuItemName))
		}
		existing, err := repo.FindByMenuItem(ctx, menuItemName)
		if err != nil {
			return db.Classify(err, "load recipe")
		}
		if existing != nil {
			recipe = existing
			return nil
		}
		created := &models.Recipe{MenuItemName: menuItemName}
		if err := repo.Create(ctx, created); err != nil {
			return db.Classify(err, "insert recipe")
		}
		recipe = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *service) Get(ctx context.Context, recipeID uint) (*RecipeDetail, error) {
	recipe, err := s.requireRecipe(ctx, s.repo, recipeID)
	if err != nil {
		return nil, err
	}
	ingredients, err := s.repo.ListIngredients(ctx, recipe.ID)
	if err != nil {
		return nil, db.Classify(err, "load recipe ingredients")
	}
	steps, err := s.repo.ListSteps(ctx, recipe.ID)
	if err != nil {
		return nil, db.Classify(err, "load preparation steps")
	}
	return &RecipeDetail{Recipe: *recipe, Ingredients: ingredients, Steps: steps}, nil
}

// AddIngredient appends an inventory item to the recipe. Ingredients keep the
// order they were added in.
func (s *service) AddIngredient(ctx context.Context, recipeID uint, input AddIngredientInput) (*models.RecipeIngredient, error) {
	input.InventoryItemName = validation.SanitizeString(input.InventoryItemName, 0)
	input.Unit = validation.SanitizeString(input.Unit, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var ingredient *models.RecipeIngredient
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.requireRecipe(ctx, repo, recipeID); err != nil {
			return err
		}
		stockUnit, exists, err := repo.InventoryItemUnit(ctx, input.InventoryItemName)
		if err != nil {
			return db.Classify(err, "load inventory item")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory item %q not found", input.InventoryItemName))
		}
		dup, err := repo.HasIngredient(ctx, recipeID, input.InventoryItemName)
		if err != nil {
			return db.Classify(err, "check recipe ingredient")
		}
		if dup {
			return pkgerrors.New(pkgerrors.CodeConflict, "ingredient already in recipe")
		}
		position, err := repo.NextIngredientPosition(ctx, recipeID)
		if err != nil {
			return db.Classify(err, "next ingredient position")
		}
		row := &models.RecipeIngredient{
			RecipeID:          recipeID,
			InventoryItemName: input.InventoryItemName,
			Position:          position,
			Quantity:          input.Quantity,
			Unit:              input.Unit,
		}
		if row.Unit == "" {
			row.Unit = stockUnit
		}
		if err := repo.CreateIngredient(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ingredient already in recipe")
			}
			return db.Classify(err, "insert recipe ingredient")
		}
		ingredient = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ingredient, nil
}

func (s *service) AddStep(ctx context.Context, recipeID uint, input AddStepInput) (*models.PreparationStep, error) {
	input.Description = validation.SanitizeString(input.Description, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var step *models.PreparationStep
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.requireRecipe(ctx, repo, recipeID); err != nil {
			return err
		}
		position, err := repo.NextStepPosition(ctx, recipeID)
		if err != nil {
			return db.Classify(err, "next step position")
		}
		row := &models.PreparationStep{RecipeID: recipeID, Position: position, Description: input.Description}
		if err := repo.CreateStep(ctx, row); err != nil {
			return db.Classify(err, "insert preparation step")
		}
		step = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (s *service) Steps(ctx context.Context, recipeID uint) ([]models.PreparationStep, error) {
	if _, err := s.requireRecipe(ctx, s.repo, recipeID); err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, recipeID)
	if err != nil {
		return nil, db.Classify(err, "load preparation steps")
	}
	return steps, nil
}

func (s *service) requireRecipe(ctx context.Context, repo Repository, recipeID uint) (*models.Recipe, error) {
	recipe, err := repo.FindByID(ctx, recipeID)
	if err != nil {
		return nil, db.Classify(err, "load recipe")
	}
	if recipe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("recipe %d not found", recipeID))
	}
	return recipe, nil
}
