package payloads

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderFulfilledEvent is emitted when an order commits.
type OrderFulfilledEvent struct {
	OrderID       uint            `json:"order_id"`
	PaymentMethod string          `json:"payment_method"`
	Items         []LineItem      `json:"items"`
	Income        decimal.Decimal `json:"income"`
	Cost          decimal.Decimal `json:"cost"`
	Net           decimal.Decimal `json:"net"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

type LineItem struct {
	MenuItemName string          `json:"menu_item_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// InventoryAdjustedEvent is emitted when stock is refilled or written off.
type InventoryAdjustedEvent struct {
	InventoryItemName string          `json:"inventory_item_name"`
	Delta             decimal.Decimal `json:"delta"`
	Quantity          decimal.Decimal `json:"quantity"`
	LedgerDelta       decimal.Decimal `json:"ledger_delta"`
	Balance           decimal.Decimal `json:"balance"`
}
