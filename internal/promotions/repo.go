package promotions

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/repo"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Repository manages promotions and the menu items placed in them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, promotion *models.Promotion) error
	FindByID(ctx context.Context, id uint) (*models.Promotion, error)
	FindForUpdate(ctx context.Context, id uint) (*models.Promotion, error)
	List(ctx context.Context) ([]models.Promotion, error)
	ListActive(ctx context.Context, at time.Time) ([]models.Promotion, error)
	MenuItemExists(ctx context.Context, name string) (bool, error)
	HasItem(ctx context.Context, promotionID uint, menuItemName string) (bool, error)
	CreateItem(ctx context.Context, item *models.PromotionItem) error
	ListItems(ctx context.Context, promotionIDs ...uint) ([]models.PromotionItem, error)
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

func (r *repository) Create(ctx context.Context, promotion *models.Promotion) error {
	return r.DB(ctx).Create(promotion).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Promotion, error) {
	return repo.TakeOrNil[models.Promotion](r.DB(ctx), "id = ?", id)
}

func (r *repository) FindForUpdate(ctx context.Context, id uint) (*models.Promotion, error) {
	return repo.TakeOrNil[models.Promotion](r.ForUpdate(ctx), "id = ?", id)
}

func (r *repository) List(ctx context.Context) ([]models.Promotion, error) {
	var promotions []models.Promotion
	if err := r.DB(ctx).Order("starts_at ASC, id ASC").Find(&promotions).Error; err != nil {
		return nil, err
	}
	return promotions, nil
}

// ListActive returns promotions whose window [starts_at, ends_at) contains at.
func (r *repository) ListActive(ctx context.Context, at time.Time) ([]models.Promotion, error) {
	var promotions []models.Promotion
	err := r.DB(ctx).
		Where("starts_at <= ? AND ends_at > ?", at, at).
		Order("starts_at ASC, id ASC").
		Find(&promotions).Error
	if err != nil {
		return nil, err
	}
	return promotions, nil
}

func (r *repository) MenuItemExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.MenuItem{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) HasItem(ctx context.Context, promotionID uint, menuItemName string) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.PromotionItem{}).
		Where("promotion_id = ? AND menu_item_name = ?", promotionID, menuItemName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.PromotionItem) error {
	return r.DB(ctx).Create(item).Error
}

func (r *repository) ListItems(ctx context.Context, promotionIDs ...uint) ([]models.PromotionItem, error) {
	var items []models.PromotionItem
	if len(promotionIDs) == 0 {
		return items, nil
	}
	err := r.DB(ctx).
		Where("promotion_id IN ?", promotionIDs).
		Order("promotion_id ASC, menu_item_name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
