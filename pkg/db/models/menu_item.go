package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is something the shop sells. Category groups the board
// (espresso, tea, pastry); IsHot separates hot drinks from iced ones.
type MenuItem struct {
	Name      string          `gorm:"column:name;primaryKey"`
	Size      string          `gorm:"column:size;not null;default:''"`
	Category  string          `gorm:"column:category;not null;default:''"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsHot     bool            `gorm:"column:is_hot;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
