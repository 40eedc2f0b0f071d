package orders

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// CreateOrderInput is one sale: how it was paid and what was bought.
type CreateOrderInput struct {
	PaymentMethod string        `json:"payment_method" validate:"required,max=64"`
	Items         []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// MaxItemQuantity bounds a line item's quantity, merged or not, to the
// integer column that stores it.
const MaxItemQuantity = math.MaxInt32

type ItemRequest struct {
	MenuItemName string `json:"menu_item_name" validate:"required,max=120"`
	Quantity     int    `json:"quantity" validate:"gt=0,lte=2147483647"`
}

// OrderDetail is an order with its line items and the ledger entry it booked.
// Cost is derived as income minus the booked net.
type OrderDetail struct {
	Order     models.Order            `json:"order"`
	LineItems []models.OrderLineItem  `json:"line_items"`
	Income    decimal.Decimal         `json:"income"`
	Cost      decimal.Decimal         `json:"cost"`
	Net       decimal.Decimal         `json:"net"`
	Entry     *models.AccountingEntry `json:"ledger_entry,omitempty"`
}

func incomeOf(items []models.OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Total())
	}
	return total
}

func newDetail(order models.Order, items []models.OrderLineItem, entry *models.AccountingEntry) *OrderDetail {
	detail := &OrderDetail{
		Order:     order,
		LineItems: items,
		Income:    incomeOf(items),
		Entry:     entry,
	}
	if entry != nil {
		detail.Net = entry.Delta
		detail.Cost = detail.Income.Sub(entry.Delta)
	}
	return detail
}
