package enums

import "fmt"

// LedgerEntryKind records what produced an accounting entry.
type LedgerEntryKind string

const (
	LedgerEntryOrder               LedgerEntryKind = "order"
	LedgerEntryInventoryAdjustment LedgerEntryKind = "inventory_adjustment"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryOrder,
	LedgerEntryInventoryAdjustment,
}

// IsValid reports whether the value matches a known entry kind.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	for _, candidate := range validLedgerEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry kind %q", value)
}
