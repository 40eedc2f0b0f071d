package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promotion offers its menu items at DiscountedPrice between StartsAt and EndsAt.
type Promotion struct {
	ID              uint            `gorm:"column:id;primaryKey;autoIncrement"`
	StartsAt        time.Time       `gorm:"column:starts_at;not null"`
	EndsAt          time.Time       `gorm:"column:ends_at;not null"`
	DiscountedPrice decimal.Decimal `gorm:"column:discounted_price;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// PromotionItem places a menu item in a promotion.
type PromotionItem struct {
	PromotionID  uint   `gorm:"column:promotion_id;primaryKey"`
	MenuItemName string `gorm:"column:menu_item_name;primaryKey"`
}
