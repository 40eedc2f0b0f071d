package enums

import "testing"

func TestParseLedgerEntryKind(t *testing.T) {
	kind, err := ParseLedgerEntryKind("order")
	if err != nil || kind != LedgerEntryOrder {
		t.Fatalf("expected order kind, got %q err=%v", kind, err)
	}
	if _, err := ParseLedgerEntryKind("refund"); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestParseEmployeeRoleIsCaseInsensitive(t *testing.T) {
	role, err := ParseEmployeeRole(" Manager ")
	if err != nil || role != EmployeeRoleManager {
		t.Fatalf("expected manager, got %q err=%v", role, err)
	}
	if EmployeeRole("owner").IsValid() {
		t.Fatalf("owner should not be a valid role")
	}
}

func TestParseDayOfWeek(t *testing.T) {
	day, err := ParseDayOfWeek("FRIDAY")
	if err != nil || day != Friday {
		t.Fatalf("expected friday, got %q err=%v", day, err)
	}
	if _, err := ParseDayOfWeek("funday"); err == nil {
		t.Fatalf("expected invalid day to fail")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventOrderFulfilled.IsValid() || !AggregateOrder.IsValid() {
		t.Fatalf("expected order enums to be valid")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatalf("expected unknown event type to fail")
	}
	if _, err := ParseOutboxAggregateType("inventory_item"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
