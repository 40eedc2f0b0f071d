package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/ledger"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox"
)

type harness struct {
	client *db.Client
	ledger ledger.Service
	svc    Service
}

func newHarness(t *testing.T, allowNegative bool) harness {
	t.Helper()
	client := dbtest.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), "")
	require.NoError(t, err)
	writer, err := ledger.NewWriter(ledger.WriterParams{
		Tx:                 client,
		Locker:             ledger.NewMutexLocker(),
		MaxConflictRetries: 1,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repository:         NewRepository(client.DB()),
		DB:                 client,
		Writer:             writer,
		Ledger:             ledgerSvc,
		Outbox:             outbox.NewService(outbox.NewRepository(client.DB()), nil),
		AllowNegativeStock: allowNegative,
	})
	require.NoError(t, err)
	return harness{client: client, ledger: ledgerSvc, svc: svc}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (h harness) seed(t *testing.T, name, qty, cost string) {
	t.Helper()
	_, err := h.svc.Create(context.Background(), CreateItemInput{
		Name:        name,
		Unit:        "unit",
		Quantity:    dec(qty),
		CostPerUnit: dec(cost),
	})
	require.NoError(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Milk", "100", "0.05")

	item, err := h.svc.Get(context.Background(), "Milk")
	require.NoError(t, err)
	assert.True(t, item.Quantity.Equal(dec("100")))
	assert.True(t, item.CostPerUnit.Equal(dec("0.05")))

	balance, err := h.ledger.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "opening stock is not charged to the ledger")
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Milk", "1", "1")

	_, err := h.svc.Create(context.Background(), CreateItemInput{Name: "Milk", Unit: "ml", Quantity: dec("1"), CostPerUnit: dec("1")})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestCreateValidatesInput(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.svc.Create(context.Background(), CreateItemInput{Name: "  ", Unit: "ml"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = h.svc.Create(context.Background(), CreateItemInput{Name: "Milk", Unit: "ml", CostPerUnit: dec("-1")})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestGetMissingIsNotFound(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.svc.Get(context.Background(), "Oat Milk")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestUpdateChangesAttributesOnly(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Beans", "10", "0.20")

	item, err := h.svc.Update(context.Background(), "Beans", UpdateItemInput{Unit: "g", CostPerUnit: dec("0.25")})
	require.NoError(t, err)
	assert.Equal(t, "g", item.Unit)
	assert.True(t, item.Quantity.Equal(dec("10")))

	_, err = h.svc.Update(context.Background(), "Sugar", UpdateItemInput{Unit: "g"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestRefillRoundTrip(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Beans", "0", "0.20")

	result, err := h.svc.AdjustInventory(context.Background(), "Beans", dec("50"))
	require.NoError(t, err)
	assert.True(t, result.Item.Quantity.Equal(dec("50")))
	assert.True(t, result.Entry.Delta.Equal(dec("-10")))
	assert.Equal(t, enums.LedgerEntryInventoryAdjustment, result.Entry.Kind)
	require.NotNil(t, result.Entry.InventoryItemName)
	assert.Equal(t, "Beans", *result.Entry.InventoryItemName)

	balance, err := h.ledger.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-10")), "balance %s", balance)

	var events []models.OutboxEvent
	require.NoError(t, h.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventInventoryAdjusted, events[0].EventType)
	assert.Equal(t, "Beans", events[0].AggregateID)
}

func TestAdjustZeroDeltaRejected(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Beans", "1", "1")

	_, err := h.svc.AdjustInventory(context.Background(), "Beans", decimal.Zero)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestAdjustMissingItemCommitsNothing(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.svc.AdjustInventory(context.Background(), "Beans", dec("1"))
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	entries, err := h.ledger.Entries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdjustAllowsNegativeStockByDefault(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Milk", "2", "0.05")

	result, err := h.svc.AdjustInventory(context.Background(), "Milk", dec("-5"))
	require.NoError(t, err)
	assert.True(t, result.Item.Quantity.Equal(dec("-3")))
	assert.True(t, result.Entry.Balance.Equal(dec("0.25")))
}

func TestAdjustRejectsNegativeStockWhenDisabled(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, "Milk", "2", "0.05")

	_, err := h.svc.AdjustInventory(context.Background(), "Milk", dec("-5"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.CodeOf(err))

	item, err := h.svc.Get(context.Background(), "Milk")
	require.NoError(t, err)
	assert.True(t, item.Quantity.Equal(dec("2")))

	balance, err := h.ledger.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestDeleteBlockedByRecipeReference(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Milk", "1", "1")

	gdb := h.client.DB()
	require.NoError(t, gdb.Create(&models.MenuItem{Name: "Latte", Size: "M", Price: dec("4.50")}).Error)
	recipe := models.Recipe{MenuItemName: "Latte"}
	require.NoError(t, gdb.Create(&recipe).Error)
	require.NoError(t, gdb.Create(&models.RecipeIngredient{RecipeID: recipe.ID, InventoryItemName: "Milk", Position: 1, Quantity: dec("3")}).Error)

	err := h.svc.Delete(context.Background(), "Milk")
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	require.NoError(t, gdb.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error)
	require.NoError(t, h.svc.Delete(context.Background(), "Milk"))

	err = h.svc.Delete(context.Background(), "Milk")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestListOrdersByName(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Sugar", "1", "1")
	h.seed(t, "Beans", "1", "1")

	items, err := h.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Beans", items[0].Name)
	assert.Equal(t, "Sugar", items[1].Name)
}

func TestNamesAreTrimmedOnEveryPath(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "Milk", "10", "0.50")
	ctx := context.Background()

	item, err := h.svc.Get(ctx, " Milk ")
	require.NoError(t, err)
	assert.Equal(t, "Milk", item.Name)

	result, err := h.svc.AdjustInventory(ctx, " Milk", dec("2"))
	require.NoError(t, err)
	assert.True(t, result.Item.Quantity.Equal(dec("12")))

	err = h.client.WithTx(ctx, func(tx *gorm.DB) error {
		adjusted, err := h.svc.AdjustTx(ctx, tx, "Milk  ", dec("-1"))
		if err != nil {
			return err
		}
		assert.True(t, adjusted.Quantity.Equal(dec("11")))
		return nil
	})
	require.NoError(t, err)

	_, err = h.svc.AdjustInventory(ctx, "   ", dec("1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
