package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/ledger"
	"github.com/angelmondragon/brewpos-backend/internal/recipes"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/brewpos-backend/pkg/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service fulfils orders and reads them back.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDetail, error)
	Get(ctx context.Context, orderID uint) (*OrderDetail, error)
	List(ctx context.Context, limit int) ([]OrderDetail, error)
}

type ledgerScope interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type recipeResolver interface {
	ResolveTx(ctx context.Context, tx *gorm.DB, menuItemName string) ([]recipes.Ingredient, error)
}

type inventoryAdjuster interface {
	AdjustTx(ctx context.Context, tx *gorm.DB, name string, delta decimal.Decimal) (*models.InventoryItem, error)
}

type ledgerAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.AccountingEntry, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Repository Repository
	Writer     ledgerScope
	Recipes    recipeResolver
	Inventory  inventoryAdjuster
	Ledger     ledgerAppender
	Outbox     eventEmitter
	Logger     *logger.Logger
	Metrics    *metrics.FulfillmentMetrics
}

type service struct {
	repo      Repository
	writer    ledgerScope
	recipes   recipeResolver
	inventory inventoryAdjuster
	ledger    ledgerAppender
	outbox    eventEmitter
	logg      *logger.Logger
	metrics   *metrics.FulfillmentMetrics
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("ledger writer required")
	}
	if params.Recipes == nil {
		return nil, fmt.Errorf("recipe resolver required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:      params.Repository,
		writer:    params.Writer,
		recipes:   params.Recipes,
		inventory: params.Inventory,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

// CreateOrder records the order, deducts every ingredient it consumes and
// books income minus cost as a single ledger entry. Any failure rolls the
// whole order back.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDetail, error) {
	started := s.now()
	detail, err := s.createOrder(ctx, input)
	outcome := ""
	if err != nil {
		outcome = string(pkgerrors.CodeOf(err))
	}
	s.metrics.Observe(outcome, s.now().Sub(started))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"error": err.Error(),
				"code":  outcome,
			}), "order fulfillment failed")
		}
		return nil, err
	}

	units := 0
	for _, li := range detail.LineItems {
		units += li.Quantity
	}
	s.metrics.AddItems(units)
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, detail.Order.ID)
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"income":  detail.Income.String(),
			"cost":    detail.Cost.String(),
			"balance": detail.Entry.Balance.String(),
		}), "order fulfilled")
	}
	return detail, nil
}

func (s *service) createOrder(ctx context.Context, input CreateOrderInput) (*OrderDetail, error) {
	input.PaymentMethod = validation.SanitizeString(input.PaymentMethod, 0)
	input.Items = sanitizeItems(input.Items)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	requested, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	var detail *OrderDetail
	err = s.writer.Do(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order := &models.Order{PaymentMethod: input.PaymentMethod, CreatedAt: s.now().UTC()}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return db.Classify(err, "insert order")
		}

		income := decimal.Zero
		cost := decimal.Zero
		lineItems := make([]models.OrderLineItem, 0, len(requested))
		for i, req := range requested {
			menuItem, err := repo.FindMenuItem(ctx, req.MenuItemName)
			if err != nil {
				return db.Classify(err, "load menu item")
			}
			if menuItem == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("menu item %q not found", req.MenuItemName))
			}
			li := models.OrderLineItem{
				OrderID:      order.ID,
				MenuItemName: menuItem.Name,
				Position:     i + 1,
				Quantity:     req.Quantity,
				UnitPrice:    menuItem.Price,
			}
			lineItems = append(lineItems, li)
			income = income.Add(li.Total())

			lineCost, err := s.consume(ctx, tx, menuItem.Name, req.Quantity)
			if err != nil {
				return err
			}
			cost = cost.Add(lineCost)
		}
		if err := repo.CreateLineItems(ctx, lineItems); err != nil {
			return db.Classify(err, "insert order line items")
		}

		orderID := order.ID
		net := income.Sub(cost)
		entry, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			Delta:   net,
			Kind:    enums.LedgerEntryOrder,
			OrderID: &orderID,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFulfilled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   fmt.Sprintf("%d", order.ID),
			OccurredAt:    order.CreatedAt,
			Data:          fulfilledEvent(order, lineItems, income, cost, net, entry.Balance),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_fulfilled")
		}

		detail = &OrderDetail{
			Order:     *order,
			LineItems: lineItems,
			Income:    income,
			Cost:      cost,
			Net:       net,
			Entry:     entry,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// consume deducts the recipe of quantity units of menuItem and returns what
// the deducted stock cost.
func (s *service) consume(ctx context.Context, tx *gorm.DB, menuItem string, quantity int) (decimal.Decimal, error) {
	ingredients, err := s.recipes.ResolveTx(ctx, tx, menuItem)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("menu item %q has no recipe", menuItem)).
				WithDetails(map[string]any{"menu_item": menuItem})
		}
		return decimal.Zero, err
	}

	units := decimal.NewFromInt(int64(quantity))
	cost := decimal.Zero
	for _, ing := range ingredients {
		amount := ing.QuantityPerUnit.Mul(units)
		item, err := s.inventory.AdjustTx(ctx, tx, ing.InventoryItemName, amount.Neg())
		if err != nil {
			return decimal.Zero, err
		}
		cost = cost.Add(amount.Mul(item.CostPerUnit))
	}
	return cost, nil
}

func (s *service) Get(ctx context.Context, orderID uint) (*OrderDetail, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, db.Classify(err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", orderID))
	}
	details, err := s.hydrate(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// List returns the most recent orders, newest first.
func (s *service) List(ctx context.Context, limit int) ([]OrderDetail, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	orders, err := s.repo.ListOrders(ctx, limit)
	if err != nil {
		return nil, db.Classify(err, "list orders")
	}
	return s.hydrate(ctx, orders)
}

func (s *service) hydrate(ctx context.Context, orders []models.Order) ([]OrderDetail, error) {
	ids := make([]uint, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.repo.ListLineItems(ctx, ids)
	if err != nil {
		return nil, db.Classify(err, "load order line items")
	}
	entries, err := s.repo.FindLedgerEntries(ctx, ids)
	if err != nil {
		return nil, db.Classify(err, "load order ledger entries")
	}

	itemsByOrder := make(map[uint][]models.OrderLineItem, len(orders))
	for _, li := range items {
		itemsByOrder[li.OrderID] = append(itemsByOrder[li.OrderID], li)
	}
	entryByOrder := make(map[uint]*models.AccountingEntry, len(entries))
	for i := range entries {
		if entries[i].OrderID != nil {
			entryByOrder[*entries[i].OrderID] = &entries[i]
		}
	}

	out := make([]OrderDetail, 0, len(orders))
	for _, o := range orders {
		out = append(out, *newDetail(o, itemsByOrder[o.ID], entryByOrder[o.ID]))
	}
	return out, nil
}

// sanitizeItems returns trimmed copies; the caller's slice is left untouched.
func sanitizeItems(items []ItemRequest) []ItemRequest {
	out := make([]ItemRequest, len(items))
	for i, item := range items {
		out[i] = ItemRequest{
			MenuItemName: validation.SanitizeString(item.MenuItemName, 0),
			Quantity:     item.Quantity,
		}
	}
	return out
}

// mergeItems folds repeated menu items into the first occurrence. Every
// quantity must already be within (0, MaxItemQuantity]; the merged total
// is held to the same bound.
func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	merged := make([]ItemRequest, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > MaxItemQuantity {
			return nil, quantityOutOfRange(item.MenuItemName)
		}
		if i, ok := index[item.MenuItemName]; ok {
			if merged[i].Quantity > MaxItemQuantity-item.Quantity {
				return nil, quantityOutOfRange(item.MenuItemName)
			}
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.MenuItemName] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func quantityOutOfRange(name string) error {
	return pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("quantity of %q must be between 1 and %d", name, MaxItemQuantity)).
		WithDetails(map[string]string{"quantity": fmt.Sprintf("must be at most %d", MaxItemQuantity)})
}

func fulfilledEvent(order *models.Order, items []models.OrderLineItem, income, cost, net, balance decimal.Decimal) payloads.OrderFulfilledEvent {
	lines := make([]payloads.LineItem, 0, len(items))
	for _, li := range items {
		lines = append(lines, payloads.LineItem{
			MenuItemName: li.MenuItemName,
			Quantity:     li.Quantity,
			UnitPrice:    li.UnitPrice,
		})
	}
	return payloads.OrderFulfilledEvent{
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		Items:         lines,
		Income:        income,
		Cost:          cost,
		Net:           net,
		Balance:       balance,
		CreatedAt:     order.CreatedAt,
	}
}
