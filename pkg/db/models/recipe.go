package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is the one recipe a menu item is made from.
type Recipe struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	MenuItemName string    `gorm:"column:menu_item_name;not null;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// RecipeIngredient is the amount of one inventory item a single unit
// consumes, in the unit the recipe is written in.
type RecipeIngredient struct {
	RecipeID          uint            `gorm:"column:recipe_id;primaryKey"`
	InventoryItemName string          `gorm:"column:inventory_item_name;primaryKey"`
	Position          int             `gorm:"column:position;not null"`
	Quantity          decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	Unit              string          `gorm:"column:unit;not null;default:''"`
}

// PreparationStep is one ordered instruction of a recipe.
type PreparationStep struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	RecipeID    uint   `gorm:"column:recipe_id;not null;index"`
	Position    int    `gorm:"column:position;not null"`
	Description string `gorm:"column:description;not null"`
}
