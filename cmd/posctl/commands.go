package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/pagination"
	"github.com/angelmondragon/brewpos-backend/pkg/types"
)

const usage = `usage: posctl <command> [flags]

commands:
  order    -payment <method> -item <menu item>[=qty] ...
  refill   -item <inventory item> -delta <signed amount>
  stock
  balance
  ledger   [-limit n] [-from start|<cursor>]
  verify
  menu-add      -name <name> [-size <size>] [-category <category>] [-hot] -price <amount>
  item-add      -name <name> -unit <unit> [-qty <amount>] -cost <amount>
  recipe-add    -menu <menu item> -ingredient <item>=<qty>[:<unit>] ... [-step <text> ...]
  recipe        -menu <menu item>
  staff-add     -ssn <ssn> -first <name> -last <name> -email <email> -role manager|barista [-salary <amount>]
  staff         [-ssn <ssn>]
  schedule-add  -ssn <ssn> -day <weekday> -start HH:MM -end HH:MM
  promo-add     -start <RFC3339> -end <RFC3339> -price <amount> [-item <menu item> ...]
  promo-item    -id <promotion id> -item <menu item>
  promos        [-active]
`

// run executes one command and writes its JSON result to out.
func run(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, strings.TrimSpace(usage))
	}
	name, rest := args[0], args[1:]

	switch name {
	case "order":
		return runOrder(ctx, a, rest, out)
	case "refill":
		return runRefill(ctx, a, rest, out)
	case "stock":
		items, err := a.inventory.List(ctx)
		if err != nil {
			return err
		}
		return writeData(out, items)
	case "balance":
		balance, err := a.ledger.Latest(ctx)
		if err != nil {
			return err
		}
		return writeData(out, map[string]string{"balance": balance.StringFixed(2)})
	case "ledger":
		return runLedger(ctx, a, rest, out)
	case "verify":
		if err := a.ledger.Verify(ctx); err != nil {
			return err
		}
		return writeData(out, map[string]string{"status": "consistent"})
	case "menu-add", "item-add", "recipe-add", "recipe", "staff-add", "staff", "schedule-add",
		"promo-add", "promo-item", "promos":
		return runSetup(ctx, a, name, rest, out)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown command %q", name))
	}
}

func runOrder(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("order")
	payment := fs.String("payment", "", "payment method")
	var items itemsFlag
	fs.Var(&items, "item", "menu item, optionally name=quantity; repeatable")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order flags")
	}

	detail, err := a.orders.CreateOrder(ctx, orders.CreateOrderInput{
		PaymentMethod: *payment,
		Items:         items,
	})
	if err != nil {
		return err
	}
	return writeData(out, detail)
}

func runRefill(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("refill")
	item := fs.String("item", "", "inventory item name")
	delta := fs.String("delta", "", "signed quantity change")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refill flags")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(*delta))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "delta must be a number")
	}

	result, err := a.inventory.AdjustInventory(ctx, *item, amount)
	if err != nil {
		return err
	}
	return writeData(out, result)
}

func runLedger(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("ledger")
	limit := fs.Int("limit", 50, "entries to list")
	from := fs.String("from", "", "page forward from this cursor, or start")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ledger flags")
	}
	if *from != "" {
		cursor := *from
		if cursor == "start" {
			cursor = ""
		}
		page, err := a.ledger.Page(ctx, pagination.Params{Limit: *limit, Cursor: cursor})
		if err != nil {
			return err
		}
		return writeData(out, page)
	}
	entries, err := a.ledger.Entries(ctx, *limit)
	if err != nil {
		return err
	}
	return writeData(out, entries)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeData(out io.Writer, data any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(types.SuccessEnvelope{Data: data})
}

// itemsFlag collects repeated -item flags.
type itemsFlag []orders.ItemRequest

func (f *itemsFlag) String() string {
	parts := make([]string, 0, len(*f))
	for _, it := range *f {
		parts = append(parts, fmt.Sprintf("%s=%d", it.MenuItemName, it.Quantity))
	}
	return strings.Join(parts, ",")
}

func (f *itemsFlag) Set(value string) error {
	name, qty, found := strings.Cut(value, "=")
	quantity := 1
	if found {
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil {
			return fmt.Errorf("quantity of %q must be an integer", name)
		}
		quantity = n
	}
	*f = append(*f, orders.ItemRequest{MenuItemName: strings.TrimSpace(name), Quantity: quantity})
	return nil
}
