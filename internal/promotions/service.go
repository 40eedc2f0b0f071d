package promotions

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/validation"
)

// Service maintains promotions. Promotions are reference data; order pricing
// reads menu prices only.
type Service interface {
	Create(ctx context.Context, input CreatePromotionInput) (*PromotionDetail, error)
	Get(ctx context.Context, id uint) (*PromotionDetail, error)
	List(ctx context.Context) ([]PromotionDetail, error)
	Active(ctx context.Context, at time.Time) ([]PromotionDetail, error)
	AddItem(ctx context.Context, id uint, menuItemName string) (*models.PromotionItem, error)
}

type CreatePromotionInput struct {
	StartsAt        time.Time       `json:"starts_at"`
	EndsAt          time.Time       `json:"ends_at"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	MenuItems       []string        `json:"menu_items" validate:"dive,required,max=120"`
}

// PromotionDetail is a promotion with the menu items it covers.
type PromotionDetail struct {
	Promotion models.Promotion `json:"promotion"`
	MenuItems []string         `json:"menu_items"`
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
		return nil, fmt.Errorf("promotion repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: db}, nil
}

// Create stores the promotion and places its initial menu items in one transaction.
func (s *service) Create(ctx context.Context, input CreatePromotionInput) (*PromotionDetail, error) {
	names := make([]string, len(input.MenuItems))
	for i, name := range input.MenuItems {
		names[i] = validation.SanitizeString(name, 0)
	}
	input.MenuItems = names
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "starts_at and ends_at are required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}
	if input.DiscountedPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discounted_price cannot be negative")
	}

	var detail *PromotionDetail
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		promotion := &models.Promotion{
			StartsAt:        input.StartsAt.UTC(),
			EndsAt:          input.EndsAt.UTC(),
			DiscountedPrice: input.DiscountedPrice,
		}
		if err := repo.Create(ctx, promotion); err != nil {
			return db.Classify(err, "insert promotion")
		}
		detail = &PromotionDetail{Promotion: *promotion, MenuItems: []string{}}
		for _, name := range input.MenuItems {
			if err := addItem(ctx, repo, promotion.ID, name); err != nil {
				return err
			}
			detail.MenuItems = append(detail.MenuItems, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *service) Get(ctx context.Context, id uint) (*PromotionDetail, error) {
	promotion, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.Classify(err, "load promotion")
	}
	if promotion == nil {
		return nil, notFound(id)
	}
	details, err := s.withItems(ctx, []models.Promotion{*promotion})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *service) List(ctx context.Context) ([]PromotionDetail, error) {
	promotions, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.Classify(err, "list promotions")
	}
	return s.withItems(ctx, promotions)
}

// Active lists the promotions running at the given instant.
func (s *service) Active(ctx context.Context, at time.Time) ([]PromotionDetail, error) {
	promotions, err := s.repo.ListActive(ctx, at.UTC())
	if err != nil {
		return nil, db.Classify(err, "list active promotions")
	}
	return s.withItems(ctx, promotions)
}

func (s *service) AddItem(ctx context.Context, id uint, menuItemName string) (*models.PromotionItem, error) {
	menuItemName = validation.SanitizeString(menuItemName, 0)
	if menuItemName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item name required")
	}

	var item *models.PromotionItem
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		promotion, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return db.Classify(err, "load promotion")
		}
		if promotion == nil {
			return notFound(id)
		}
		if err := addItem(ctx, repo, id, menuItemName); err != nil {
			return err
		}
		item = &models.PromotionItem{PromotionID: id, MenuItemName: menuItemName}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func addItem(ctx context.Context, repo Repository, promotionID uint, menuItemName string) error {
	exists, err := repo.MenuItemExists(ctx, menuItemName)
	if err != nil {
		return db.Classify(err, "load menu item")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("menu item %q not found", menuItemName))
	}
	dup, err := repo.HasItem(ctx, promotionID, menuItemName)
	if err != nil {
		return db.Classify(err, "check promotion item")
	}
	if dup {
		return pkgerrors.New(pkgerrors.CodeConflict, "menu item already in promotion").
			WithDetails(map[string]any{"promotion_id": promotionID, "menu_item": menuItemName})
	}
	if err := repo.CreateItem(ctx, &models.PromotionItem{PromotionID: promotionID, MenuItemName: menuItemName}); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "menu item already in promotion")
		}
		return db.Classify(err, "insert promotion item")
	}
	return nil
}

func (s *service) withItems(ctx context.Context, promotions []models.Promotion) ([]PromotionDetail, error) {
	ids := make([]uint, 0, len(promotions))
	for _, p := range promotions {
		ids = append(ids, p.ID)
	}
	items, err := s.repo.ListItems(ctx, ids...)
	if err != nil {
		return nil, db.Classify(err, "list promotion items")
	}
	byPromotion := make(map[uint][]string, len(promotions))
	for _, item := range items {
		byPromotion[item.PromotionID] = append(byPromotion[item.PromotionID], item.MenuItemName)
	}

	out := make([]PromotionDetail, 0, len(promotions))
	for _, p := range promotions {
		names := byPromotion[p.ID]
		if names == nil {
			names = []string{}
		}
		out = append(out, PromotionDetail{Promotion: p, MenuItems: names})
	}
	return out, nil
}

func notFound(id uint) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("promotion %d not found", id))
}
