package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a consumable stock line valued at a fixed cost per unit.
type InventoryItem struct {
	Name        string          `gorm:"column:name;primaryKey"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	Unit        string          `gorm:"column:unit;not null"`
	CostPerUnit decimal.Decimal `gorm:"column:cost_per_unit;type:numeric(12,4);not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
