package menu

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/validation"
)

// Service maintains the menu.
type Service interface {
	Get(ctx context.Context, name string) (*models.MenuItem, error)
	List(ctx context.Context) ([]models.MenuItem, error)
	Create(ctx context.Context, input CreateMenuItemInput) (*models.MenuItem, error)
	Update(ctx context.Context, name string, input UpdateMenuItemInput) (*models.MenuItem, error)
	Delete(ctx context.Context, name string) error
}

type CreateMenuItemInput struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Size     string          `json:"size" validate:"max=32"`
	Category string          `json:"category" validate:"max=64"`
	Price    decimal.Decimal `json:"price"`
	IsHot    bool            `json:"is_hot"`
}

// UpdateMenuItemInput replaces every mutable attribute of a menu item.
type UpdateMenuItemInput struct {
	Size     string          `json:"size" validate:"max=32"`
	Category string          `json:"category" validate:"max=64"`
	Price    decimal.Decimal `json:"price"`
	IsHot    bool            `json:"is_hot"`
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
		return nil, fmt.Errorf("menu repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: db}, nil
}

func (s *service) Get(ctx context.Context, name string) (*models.MenuItem, error) {
	item, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, db.Classify(err, "load menu item")
	}
	if item == nil {
		return nil, notFound(name)
	}
	return item, nil
}

func (s *service) List(ctx context.Context) ([]models.MenuItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.Classify(err, "list menu items")
	}
	return items, nil
}

func (s *service) Create(ctx context.Context, input CreateMenuItemInput) (*models.MenuItem, error) {
	input.Name = validation.SanitizeString(input.Name, 0)
	input.Size = validation.SanitizeString(input.Size, 0)
	input.Category = validation.SanitizeString(input.Category, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	item := &models.MenuItem{
		Name:     input.Name,
		Size:     input.Size,
		Category: input.Category,
		Price:    input.Price,
		IsHot:    input.IsHot,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "menu item already exists")
		}
		return nil, db.Classify(err, "insert menu item")
	}
	return item, nil
}

func (s *service) Update(ctx context.Context, name string, input UpdateMenuItemInput) (*models.MenuItem, error) {
	input.Size = validation.SanitizeString(input.Size, 0)
	input.Category = validation.SanitizeString(input.Category, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}

	var updated *models.MenuItem
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.GetForUpdate(ctx, name)
		if err != nil {
			return db.Classify(err, "load menu item")
		}
		if item == nil {
			return notFound(name)
		}
		item.Size = input.Size
		item.Category = input.Category
		item.Price = input.Price
		item.IsHot = input.IsHot
		if err := repo.Update(ctx, item); err != nil {
			return db.Classify(err, "update menu item")
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a menu item that no order references, along with its recipe.
func (s *service) Delete(ctx context.Context, name string) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.GetForUpdate(ctx, name)
		if err != nil {
			return db.Classify(err, "load menu item")
		}
		if item == nil {
			return notFound(name)
		}
		refs, err := repo.CountLineItems(ctx, name)
		if err != nil {
			return db.Classify(err, "count order line items")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "menu item has order history").
				WithDetails(map[string]any{"menu_item": name, "line_items": refs})
		}
		if err := repo.DeleteWithRecipe(ctx, name); err != nil {
			return db.Classify(err, "delete menu item")
		}
		return nil
	})
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

func notFound(name string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("menu item %q not found", name))
}
