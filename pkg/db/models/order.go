package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the header row of a fulfilled sale.
type Order struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	PaymentMethod string    `gorm:"column:payment_method;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderLineItem snapshots the unit price of a menu item at order time.
type OrderLineItem struct {
	OrderID      uint            `gorm:"column:order_id;primaryKey"`
	MenuItemName string          `gorm:"column:menu_item_name;primaryKey"`
	Position     int             `gorm:"column:position;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

// Total is quantity times the captured unit price.
func (li OrderLineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
