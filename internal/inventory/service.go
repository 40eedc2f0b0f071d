package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/ledger"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/brewpos-backend/pkg/validation"
)

// Service exposes stock reads, reference-data maintenance and adjustments.
type Service interface {
	Get(ctx context.Context, name string) (*models.InventoryItem, error)
	List(ctx context.Context) ([]models.InventoryItem, error)
	Create(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error)
	Update(ctx context.Context, name string, input UpdateItemInput) (*models.InventoryItem, error)
	Delete(ctx context.Context, name string) error
	AdjustInventory(ctx context.Context, name string, delta decimal.Decimal) (*AdjustResult, error)
	AdjustTx(ctx context.Context, tx *gorm.DB, name string, delta decimal.Decimal) (*models.InventoryItem, error)
}

type CreateItemInput struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Unit        string          `json:"unit" validate:"required,max=32"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

// UpdateItemInput changes descriptive attributes only. Quantity moves through
// adjustments so every change has a ledger entry.
type UpdateItemInput struct {
	Unit        string          `json:"unit" validate:"required,max=32"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

// AdjustResult is the item after the adjustment and the ledger entry paired with it.
type AdjustResult struct {
	Item  models.InventoryItem
	Entry models.AccountingEntry
}

type ledgerScope interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.AccountingEntry, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository         Repository
	DB                 txRunner
	Writer             ledgerScope
	Ledger             ledgerAppender
	Outbox             eventEmitter
	Logger             *logger.Logger
	AllowNegativeStock bool
}

type service struct {
	repo          Repository
	db            txRunner
	writer        ledgerScope
	ledger        ledgerAppender
	outbox        eventEmitter
	logg          *logger.Logger
	allowNegative bool
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("ledger writer required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:          params.Repository,
		db:            params.DB,
		writer:        params.Writer,
		ledger:        params.Ledger,
		outbox:        params.Outbox,
		logg:          params.Logger,
		allowNegative: params.AllowNegativeStock,
	}, nil
}

func (s *service) Get(ctx context.Context, name string) (*models.InventoryItem, error) {
	name, err := itemName(name)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, db.Classify(err, "load inventory item")
	}
	if item == nil {
		return nil, notFound(name)
	}
	return item, nil
}

func (s *service) List(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.Classify(err, "list inventory items")
	}
	return items, nil
}

// Create registers a stock line. Its opening quantity is not charged to the ledger.
func (s *service) Create(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	input.Name = validation.SanitizeString(input.Name, 0)
	input.Unit = validation.SanitizeString(input.Unit, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.CostPerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost_per_unit cannot be negative")
	}
	if input.Quantity.IsNegative() && !s.allowNegative {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	item := &models.InventoryItem{
		Name:        input.Name,
		Unit:        input.Unit,
		Quantity:    input.Quantity,
		CostPerUnit: input.CostPerUnit,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "inventory item already exists")
		}
		return nil, db.Classify(err, "insert inventory item")
	}
	return item, nil
}

func (s *service) Update(ctx context.Context, name string, input UpdateItemInput) (*models.InventoryItem, error) {
	name, err := itemName(name)
	if err != nil {
		return nil, err
	}
	input.Unit = validation.SanitizeString(input.Unit, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.CostPerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost_per_unit cannot be negative")
	}

	var updated *models.InventoryItem
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.GetForUpdate(ctx, name)
		if err != nil {
			return db.Classify(err, "load inventory item")
		}
		if item == nil {
			return notFound(name)
		}
		if err := repo.UpdateAttributes(ctx, name, input.Unit, input.CostPerUnit); err != nil {
			return db.Classify(err, "update inventory item")
		}
		item.Unit = input.Unit
		item.CostPerUnit = input.CostPerUnit
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an item no recipe uses.
func (s *service) Delete(ctx context.Context, name string) error {
	name, err := itemName(name)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.GetForUpdate(ctx, name)
		if err != nil {
			return db.Classify(err, "load inventory item")
		}
		if item == nil {
			return notFound(name)
		}
		refs, err := repo.CountRecipeReferences(ctx, name)
		if err != nil {
			return db.Classify(err, "count recipe references")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "inventory item is used by a recipe").
				WithDetails(map[string]any{"inventory_item": name, "recipes": refs})
		}
		if err := repo.Delete(ctx, name); err != nil {
			return db.Classify(err, "delete inventory item")
		}
		return nil
	})
}

// AdjustInventory adds delta to the stock on hand and books -delta*cost_per_unit
// to the ledger in the same serialized transaction.
func (s *service) AdjustInventory(ctx context.Context, name string, delta decimal.Decimal) (*AdjustResult, error) {
	name, err := itemName(name)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	if s.logg != nil {
		ctx = s.logg.WithInventoryItem(ctx, name)
	}

	var result *AdjustResult
	err = s.writer.Do(ctx, func(tx *gorm.DB) error {
		item, err := s.AdjustTx(ctx, tx, name, delta)
		if err != nil {
			return err
		}
		ledgerDelta := delta.Mul(item.CostPerUnit).Neg()
		itemName := item.Name
		entry, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			Delta:             ledgerDelta,
			Kind:              enums.LedgerEntryInventoryAdjustment,
			InventoryItemName: &itemName,
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   item.Name,
			Data: payloads.InventoryAdjustedEvent{
				InventoryItemName: item.Name,
				Delta:             delta,
				Quantity:          item.Quantity,
				LedgerDelta:       ledgerDelta,
				Balance:           entry.Balance,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit inventory_adjusted")
		}
		result = &AdjustResult{Item: *item, Entry: *entry}
		return nil
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "inventory adjustment failed")
		}
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"delta":    delta.String(),
			"quantity": result.Item.Quantity.String(),
			"balance":  result.Entry.Balance.String(),
		}), "inventory adjusted")
	}
	return result, nil
}

// AdjustTx applies delta to the locked row inside tx and returns the updated
// item. It books nothing to the ledger; callers own the monetary side.
func (s *service) AdjustTx(ctx context.Context, tx *gorm.DB, name string, delta decimal.Decimal) (*models.InventoryItem, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory adjustment requires a transaction")
	}
	name, err := itemName(name)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	item, err := repo.GetForUpdate(ctx, name)
	if err != nil {
		return nil, db.Classify(err, "lock inventory item")
	}
	if item == nil {
		return nil, notFound(name)
	}

	next := item.Quantity.Add(delta)
	if next.IsNegative() && delta.IsNegative() && !s.allowNegative {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("not enough %s in stock", name)).
			WithDetails(map[string]any{
				"inventory_item": name,
				"on_hand":        item.Quantity.String(),
				"requested":      delta.Neg().String(),
			})
	}
	if err := repo.SetQuantity(ctx, name, next); err != nil {
		return nil, db.Classify(err, "update inventory quantity")
	}
	item.Quantity = next
	return item, nil
}

// itemName is the single normalization point for inventory item keys.
func itemName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "inventory item name required")
	}
	return name, nil
}

func notFound(name string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory item %q not found", name))
}
