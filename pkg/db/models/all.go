package models

// All lists every persisted model, in dependency order, for schema bootstrap
// on SQLite where the Postgres goose migrations do not apply.
func All() []any {
	return []any{
		&Employee{},
		&Manager{},
		&Barista{},
		&WorkSchedule{},
		&InventoryItem{},
		&MenuItem{},
		&Recipe{},
		&RecipeIngredient{},
		&PreparationStep{},
		&Promotion{},
		&PromotionItem{},
		&Order{},
		&OrderLineItem{},
		&AccountingEntry{},
		&LedgerHead{},
		&OutboxEvent{},
	}
}
