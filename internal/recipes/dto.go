package recipes

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Ingredient is one resolved recipe line: how much of an inventory item a
// single unit of the menu item consumes.
type Ingredient struct {
	InventoryItemName string          `json:"inventory_item_name"`
	QuantityPerUnit   decimal.Decimal `json:"quantity_per_unit"`
	Unit              string          `json:"unit"`
}

// RecipeDetail is a recipe with its ordered ingredients and steps.
type RecipeDetail struct {
	Recipe      models.Recipe            `json:"recipe"`
	Ingredients []Ingredient             `json:"ingredients"`
	Steps       []models.PreparationStep `json:"steps"`
}

// AddIngredientInput names the amount per serving. An empty Unit takes the
// inventory item's unit.
type AddIngredientInput struct {
	InventoryItemName string          `json:"inventory_item_name" validate:"required,max=120"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit" validate:"max=32"`
}

type AddStepInput struct {
	Description string `json:"description" validate:"required,max=500"`
}
