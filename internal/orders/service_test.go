package orders

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brewpos-backend/internal/inventory"
	"github.com/angelmondragon/brewpos-backend/internal/ledger"
	"github.com/angelmondragon/brewpos-backend/internal/recipes"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox/payloads"
)

type harness struct {
	client    *db.Client
	ledger    ledger.Service
	inventory inventory.Service
	recipes   recipes.Service
	orders    Service
	registry  *prometheus.Registry
}

func newHarness(t *testing.T, allowNegative bool) *harness {
	t.Helper()
	client := dbtest.Open(t)
	gdb := client.DB()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb), "")
	require.NoError(t, err)
	writer, err := ledger.NewWriter(ledger.WriterParams{
		Tx:                 client,
		Locker:             ledger.NewMutexLocker(),
		MaxConflictRetries: ledger.DefaultMaxConflictRetries,
	})
	require.NoError(t, err)
	events := outbox.NewService(outbox.NewRepository(gdb), nil)

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repository:         inventory.NewRepository(gdb),
		DB:                 client,
		Writer:             writer,
		Ledger:             ledgerSvc,
		Outbox:             events,
		AllowNegativeStock: allowNegative,
	})
	require.NoError(t, err)
	recipeSvc, err := recipes.NewService(recipes.NewRepository(gdb), client)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	orderSvc, err := NewService(ServiceParams{
		Repository: NewRepository(gdb),
		Writer:     writer,
		Recipes:    recipeSvc,
		Inventory:  inventorySvc,
		Ledger:     ledgerSvc,
		Outbox:     events,
		Metrics:    metrics.NewFulfillmentMetrics(reg),
	})
	require.NoError(t, err)

	return &harness{
		client:    client,
		ledger:    ledgerSvc,
		inventory: inventorySvc,
		recipes:   recipeSvc,
		orders:    orderSvc,
		registry:  reg,
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (h *harness) stock(t *testing.T, name, qty, cost string) {
	t.Helper()
	_, err := h.inventory.Create(context.Background(), inventory.CreateItemInput{
		Name: name, Unit: "unit", Quantity: dec(qty), CostPerUnit: dec(cost),
	})
	require.NoError(t, err)
}

func (h *harness) menuItem(t *testing.T, name, price string, ingredients map[string]string, order ...string) {
	t.Helper()
	require.NoError(t, h.client.DB().Create(&models.MenuItem{Name: name, Price: dec(price)}).Error)
	if ingredients == nil {
		return
	}
	recipe, err := h.recipes.CreateRecipe(context.Background(), name)
	require.NoError(t, err)
	for _, item := range order {
		_, err := h.recipes.AddIngredient(context.Background(), recipe.ID, recipes.AddIngredientInput{
			InventoryItemName: item,
			Quantity:          dec(ingredients[item]),
		})
		require.NoError(t, err)
	}
}

func (h *harness) quantity(t *testing.T, name string) decimal.Decimal {
	t.Helper()
	item, err := h.inventory.Get(context.Background(), name)
	require.NoError(t, err)
	return item.Quantity
}

func (h *harness) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	balance, err := h.ledger.Latest(context.Background())
	require.NoError(t, err)
	return balance
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(model).Count(&n).Error)
	return n
}

func latteShop(t *testing.T) *harness {
	h := newHarness(t, true)
	h.stock(t, "milk", "100", "0.50")
	h.menuItem(t, "latte", "4.00", map[string]string{"milk": "2"}, "milk")
	return h
}

func TestCreateOrderLatteScenario(t *testing.T) {
	h := latteShop(t)

	detail, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 3}},
	})
	require.NoError(t, err)

	require.Len(t, detail.LineItems, 1)
	assert.Equal(t, 3, detail.LineItems[0].Quantity)
	assert.True(t, detail.LineItems[0].UnitPrice.Equal(dec("4.00")))
	assert.Equal(t, "cash", detail.Order.PaymentMethod)
	assert.True(t, detail.Income.Equal(dec("12")))
	assert.True(t, detail.Cost.Equal(dec("3")))
	assert.True(t, detail.Net.Equal(dec("9")))
	require.NotNil(t, detail.Entry)
	assert.Equal(t, enums.LedgerEntryOrder, detail.Entry.Kind)
	require.NotNil(t, detail.Entry.OrderID)
	assert.Equal(t, detail.Order.ID, *detail.Entry.OrderID)

	assert.True(t, h.quantity(t, "milk").Equal(dec("94")))
	assert.True(t, h.balance(t).Equal(dec("9")))
	assert.Equal(t, int64(1), h.count(t, &models.AccountingEntry{}))
}

func TestCreateOrderBooksOneEntryPerOrder(t *testing.T) {
	h := latteShop(t)
	h.stock(t, "beans", "1000", "0.02")
	h.menuItem(t, "espresso", "2.50", map[string]string{"beans": "18"}, "beans")

	detail, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "card",
		Items: []ItemRequest{
			{MenuItemName: "latte", Quantity: 1},
			{MenuItemName: "espresso", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, detail.LineItems, 2)
	assert.Equal(t, "latte", detail.LineItems[0].MenuItemName)
	assert.Equal(t, "espresso", detail.LineItems[1].MenuItemName)

	// income 4 + 5 = 9; cost 2*0.5 + 36*0.02 = 1.72
	assert.True(t, detail.Net.Equal(dec("7.28")), "net %s", detail.Net)
	assert.Equal(t, int64(1), h.count(t, &models.AccountingEntry{}))
	assert.True(t, h.quantity(t, "beans").Equal(dec("964")))
}

func TestCreateOrderMissingRecipeIsInvalid(t *testing.T) {
	h := latteShop(t)
	h.menuItem(t, "water", "0", nil)

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "water", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestCreateOrderIsAtomic(t *testing.T) {
	h := latteShop(t)
	h.menuItem(t, "water", "0", nil)

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items: []ItemRequest{
			{MenuItemName: "latte", Quantity: 2},
			{MenuItemName: "water", Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Zero(t, h.count(t, &models.OrderLineItem{}))
	assert.Zero(t, h.count(t, &models.AccountingEntry{}))
	assert.Zero(t, h.count(t, &models.OutboxEvent{}))
	assert.True(t, h.quantity(t, "milk").Equal(dec("100")))
	assert.True(t, h.balance(t).IsZero())
}

func TestCreateOrderUnknownMenuItem(t *testing.T) {
	h := latteShop(t)

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 1}, {MenuItemName: "chai", Quantity: 1}},
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.True(t, h.quantity(t, "milk").Equal(dec("100")))
}

func TestCreateOrderMissingInventoryItem(t *testing.T) {
	h := latteShop(t)
	recipe, err := h.recipes.CreateRecipe(context.Background(), "latte")
	require.NoError(t, err)
	require.NoError(t, h.client.DB().Create(&models.RecipeIngredient{
		RecipeID: recipe.ID, InventoryItemName: "syrup", Position: 9, Quantity: dec("1"),
	}).Error)

	_, err = h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 1}},
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.True(t, h.quantity(t, "milk").Equal(dec("100")))
}

func TestCreateOrderValidation(t *testing.T) {
	h := latteShop(t)
	cases := []CreateOrderInput{
		{PaymentMethod: "", Items: []ItemRequest{{MenuItemName: "latte", Quantity: 1}}},
		{PaymentMethod: "cash"},
		{PaymentMethod: "cash", Items: []ItemRequest{{MenuItemName: "latte", Quantity: 0}}},
		{PaymentMethod: "cash", Items: []ItemRequest{{MenuItemName: " ", Quantity: 1}}},
	}
	for _, input := range cases {
		_, err := h.orders.CreateOrder(context.Background(), input)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "input %+v", input)
	}
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestCreateOrderMergesRepeatedItems(t *testing.T) {
	h := latteShop(t)

	detail, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 1}, {MenuItemName: "latte", Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, detail.LineItems, 1)
	assert.Equal(t, 3, detail.LineItems[0].Quantity)
	assert.True(t, h.quantity(t, "milk").Equal(dec("94")))
}

func TestCreateOrderRejectsNegativeStockWhenDisabled(t *testing.T) {
	h := newHarness(t, false)
	h.stock(t, "milk", "3", "0.50")
	h.menuItem(t, "latte", "4.00", map[string]string{"milk": "2"}, "milk")

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 2}},
	})
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.CodeOf(err))
	assert.True(t, h.quantity(t, "milk").Equal(dec("3")))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestCreateOrderAllowsNegativeStockByDefault(t *testing.T) {
	h := newHarness(t, true)
	h.stock(t, "milk", "3", "0.50")
	h.menuItem(t, "latte", "4.00", map[string]string{"milk": "2"}, "milk")

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, h.quantity(t, "milk").Equal(dec("-1")))
}

func TestConcurrentOrdersDoNotLoseUpdates(t *testing.T) {
	h := newHarness(t, true)
	h.stock(t, "beans", "100", "1.00")
	// price 6, cost 1 → net +5 per order
	h.menuItem(t, "espresso", "6.00", map[string]string{"beans": "1"}, "beans")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.orders.CreateOrder(context.Background(), CreateOrderInput{
				PaymentMethod: "cash",
				Items:         []ItemRequest{{MenuItemName: "espresso", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.True(t, h.balance(t).Equal(dec("10")), "balance %s", h.balance(t))
	assert.True(t, h.quantity(t, "beans").Equal(dec("98")))
	require.NoError(t, h.ledger.Verify(context.Background()))
}

func TestRefillRoundTripAndConservation(t *testing.T) {
	h := latteShop(t)

	_, err := h.inventory.AdjustInventory(context.Background(), "milk", dec("50"))
	require.NoError(t, err)
	assert.True(t, h.quantity(t, "milk").Equal(dec("150")))

	// 25 lattes consume the 50 units just refilled
	_, err = h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "cash",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 25}},
	})
	require.NoError(t, err)
	assert.True(t, h.quantity(t, "milk").Equal(dec("100")))

	// refill -25.00, order 100.00 - 25.00 = +75.00
	assert.True(t, h.balance(t).Equal(dec("50")), "balance %s", h.balance(t))

	entries, err := h.ledger.Entries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.LedgerEntryInventoryAdjustment, entries[0].Kind)
	assert.Equal(t, enums.LedgerEntryOrder, entries[1].Kind)
	require.NoError(t, h.ledger.Verify(context.Background()))
}

func TestCreateOrderEmitsOutboxEvent(t *testing.T) {
	h := latteShop(t)

	detail, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		PaymentMethod: "card",
		Items:         []ItemRequest{{MenuItemName: "latte", Quantity: 1}},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, h.client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderFulfilled, rows[0].EventType)
	assert.Equal(t, enums.AggregateOrder, rows[0].AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	var event payloads.OrderFulfilledEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &event))
	assert.Equal(t, detail.Order.ID, event.OrderID)
	assert.True(t, event.Net.Equal(dec("3")))
	assert.True(t, event.Balance.Equal(dec("3")))
}

func TestGetAndList(t *testing.T) {
	h := latteShop(t)
	ctx := context.Background()

	first, err := h.orders.CreateOrder(ctx, CreateOrderInput{PaymentMethod: "cash", Items: []ItemRequest{{MenuItemName: "latte", Quantity: 1}}})
	require.NoError(t, err)
	second, err := h.orders.CreateOrder(ctx, CreateOrderInput{PaymentMethod: "card", Items: []ItemRequest{{MenuItemName: "latte", Quantity: 2}}})
	require.NoError(t, err)

	got, err := h.orders.Get(ctx, first.Order.ID)
	require.NoError(t, err)
	require.Len(t, got.LineItems, 1)
	assert.True(t, got.Income.Equal(dec("4")))
	assert.True(t, got.Cost.Equal(dec("1")))
	assert.True(t, got.Net.Equal(dec("3")))

	list, err := h.orders.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Order.ID, list[0].Order.ID)
	assert.Equal(t, "card", list[0].Order.PaymentMethod)

	_, err = h.orders.Get(ctx, second.Order.ID+10)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCreateOrderRecordsMetrics(t *testing.T) {
	h := latteShop(t)
	h.menuItem(t, "water", "0", nil)

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{PaymentMethod: "cash", Items: []ItemRequest{{MenuItemName: "latte", Quantity: 2}}})
	require.NoError(t, err)
	_, err = h.orders.CreateOrder(context.Background(), CreateOrderInput{PaymentMethod: "cash", Items: []ItemRequest{{MenuItemName: "water", Quantity: 1}}})
	require.Error(t, err)

	families, err := h.registry.Gather()
	require.NoError(t, err)
	outcomes := map[string]float64{}
	var items float64
	for _, mf := range families {
		switch mf.GetName() {
		case "brewpos_orders_total":
			for _, m := range mf.GetMetric() {
				outcomes[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
		case "brewpos_order_items_total":
			items = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), outcomes["ok"])
	assert.Equal(t, float64(1), outcomes[string(pkgerrors.CodeValidation)])
	assert.Equal(t, float64(2), items)
}

func TestMergeItemsKeepsFirstPosition(t *testing.T) {
	merged, err := mergeItems([]ItemRequest{
		{MenuItemName: "a", Quantity: 1},
		{MenuItemName: "b", Quantity: 1},
		{MenuItemName: "a", Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].MenuItemName)
	assert.Equal(t, 5, merged[0].Quantity)
	assert.Equal(t, "b", merged[1].MenuItemName)
}

func TestMergeItemsRejectsTotalsPastTheBound(t *testing.T) {
	_, err := mergeItems([]ItemRequest{
		{MenuItemName: "a", Quantity: MaxItemQuantity},
		{MenuItemName: "a", Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	merged, err := mergeItems([]ItemRequest{
		{MenuItemName: "a", Quantity: MaxItemQuantity - 1},
		{MenuItemName: "a", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, MaxItemQuantity, merged[0].Quantity)
}

func TestCreateOrderRejectsOversizedQuantities(t *testing.T) {
	h := latteShop(t)
	ctx := context.Background()

	cases := map[string][]ItemRequest{
		"repeated max int": {
			{MenuItemName: "latte", Quantity: math.MaxInt},
			{MenuItemName: "latte", Quantity: math.MaxInt},
		},
		"single above column": {{MenuItemName: "latte", Quantity: MaxItemQuantity + 1}},
		"merged above column": {
			{MenuItemName: "latte", Quantity: MaxItemQuantity},
			{MenuItemName: " latte ", Quantity: 1},
		},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.orders.CreateOrder(ctx, CreateOrderInput{PaymentMethod: "cash", Items: items})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	assert.True(t, h.quantity(t, "milk").Equal(dec("100")))
	assert.True(t, h.balance(t).IsZero())
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Zero(t, h.count(t, &models.OrderLineItem{}))
}

func TestCreateOrderLeavesCallerItemsUntouched(t *testing.T) {
	h := latteShop(t)
	items := []ItemRequest{{MenuItemName: "  latte ", Quantity: 1}}

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{PaymentMethod: "cash", Items: items})
	require.NoError(t, err)
	assert.Equal(t, "  latte ", items[0].MenuItemName)
}
