package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/pkg/enums"
)

// AccountingEntry is an immutable point on the running balance.
type AccountingEntry struct {
	ID                uint                  `gorm:"column:id;primaryKey;autoIncrement"`
	LedgerKey         string                `gorm:"column:ledger_key;not null;uniqueIndex:ux_accounting_entries_sequence,priority:1"`
	Sequence          int64                 `gorm:"column:sequence;not null;uniqueIndex:ux_accounting_entries_sequence,priority:2"`
	Timestamp         time.Time             `gorm:"column:timestamp;not null"`
	Delta             decimal.Decimal       `gorm:"column:delta;type:numeric(14,4);not null"`
	Balance           decimal.Decimal       `gorm:"column:balance;type:numeric(14,4);not null"`
	Kind              enums.LedgerEntryKind `gorm:"column:kind;type:text;not null"`
	OrderID           *uint                 `gorm:"column:order_id"`
	InventoryItemName *string               `gorm:"column:inventory_item_name"`
}

// LedgerHead is the single-writer cursor of a ledger: the sequence and
// balance of its newest entry.
type LedgerHead struct {
	LedgerKey string          `gorm:"column:ledger_key;primaryKey"`
	Sequence  int64           `gorm:"column:sequence;not null"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(14,4);not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null"`
}
