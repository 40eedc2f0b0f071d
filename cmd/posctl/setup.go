package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/internal/employees"
	"github.com/angelmondragon/brewpos-backend/internal/inventory"
	"github.com/angelmondragon/brewpos-backend/internal/menu"
	"github.com/angelmondragon/brewpos-backend/internal/promotions"
	"github.com/angelmondragon/brewpos-backend/internal/recipes"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
)

const envStaffPassword = "BREWPOS_STAFF_PASSWORD"

// runSetup handles the reference-data commands.
func runSetup(ctx context.Context, a *app, name string, args []string, out io.Writer) error {
	switch name {
	case "menu-add":
		return runMenuAdd(ctx, a, args, out)
	case "item-add":
		return runItemAdd(ctx, a, args, out)
	case "recipe-add":
		return runRecipeAdd(ctx, a, args, out)
	case "recipe":
		return runRecipeShow(ctx, a, args, out)
	case "staff-add":
		return runStaffAdd(ctx, a, args, out)
	case "staff":
		return runStaffShow(ctx, a, args, out)
	case "schedule-add":
		return runScheduleAdd(ctx, a, args, out)
	case "promo-add":
		return runPromoAdd(ctx, a, args, out)
	case "promo-item":
		return runPromoItem(ctx, a, args, out)
	case "promos":
		return runPromos(ctx, a, args, out)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown command %q", name))
}

func runMenuAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("menu-add")
	name := fs.String("name", "", "menu item name")
	size := fs.String("size", "", "serving size")
	category := fs.String("category", "", "menu category")
	hot := fs.Bool("hot", false, "served hot")
	price := fs.String("price", "", "unit price")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	amount, err := parseAmount("price", *price)
	if err != nil {
		return err
	}
	item, err := a.menu.Create(ctx, menu.CreateMenuItemInput{
		Name:     *name,
		Size:     *size,
		Category: *category,
		Price:    amount,
		IsHot:    *hot,
	})
	if err != nil {
		return err
	}
	return writeData(out, item)
}

func runItemAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("item-add")
	name := fs.String("name", "", "inventory item name")
	unit := fs.String("unit", "", "unit of measure")
	qty := fs.String("qty", "0", "opening quantity on hand")
	cost := fs.String("cost", "", "cost per unit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	quantity, err := parseAmount("qty", *qty)
	if err != nil {
		return err
	}
	costPerUnit, err := parseAmount("cost", *cost)
	if err != nil {
		return err
	}
	item, err := a.inventory.Create(ctx, inventory.CreateItemInput{
		Name:        *name,
		Unit:        *unit,
		Quantity:    quantity,
		CostPerUnit: costPerUnit,
	})
	if err != nil {
		return err
	}
	return writeData(out, item)
}

func runRecipeAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("recipe-add")
	menuItem := fs.String("menu", "", "menu item the recipe prepares")
	var ingredients ingredientsFlag
	fs.Var(&ingredients, "ingredient", "inventory item=quantity[:unit] per serving; repeatable")
	var steps stringsFlag
	fs.Var(&steps, "step", "preparation step; repeatable")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	recipe, err := a.recipes.CreateRecipe(ctx, *menuItem)
	if err != nil {
		return err
	}
	for _, ingredient := range ingredients {
		if _, err := a.recipes.AddIngredient(ctx, recipe.ID, ingredient); err != nil {
			return err
		}
	}
	for _, step := range steps {
		if _, err := a.recipes.AddStep(ctx, recipe.ID, recipes.AddStepInput{Description: step}); err != nil {
			return err
		}
	}
	detail, err := a.recipes.Get(ctx, recipe.ID)
	if err != nil {
		return err
	}
	return writeData(out, detail)
}

func runRecipeShow(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("recipe")
	menuItem := fs.String("menu", "", "menu item name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ingredients, err := a.recipes.Resolve(ctx, *menuItem)
	if err != nil {
		return err
	}
	return writeData(out, ingredients)
}

func runStaffAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("staff-add")
	ssn := fs.String("ssn", "", "social security number")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", string(enums.EmployeeRoleBarista), "manager or barista")
	salary := fs.String("salary", "0", "salary")
	password := fs.String("password", "", "initial password; falls back to "+envStaffPassword)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	amount, err := parseAmount("salary", *salary)
	if err != nil {
		return err
	}
	secret := *password
	if secret == "" {
		secret = os.Getenv(envStaffPassword)
	}

	employee, err := a.staff.Create(ctx, employees.CreateEmployeeInput{
		SSN:       *ssn,
		FirstName: *first,
		LastName:  *last,
		Email:     *email,
		Password:  secret,
		Role:      enums.EmployeeRole(strings.ToLower(strings.TrimSpace(*role))),
		Salary:    amount,
	})
	if err != nil {
		return err
	}
	return writeData(out, employee)
}

func runStaffShow(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("staff")
	ssn := fs.String("ssn", "", "show a single employee")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *ssn == "" {
		list, err := a.staff.List(ctx)
		if err != nil {
			return err
		}
		return writeData(out, list)
	}
	employee, err := a.staff.Get(ctx, *ssn)
	if err != nil {
		return err
	}
	schedules, err := a.staff.Schedules(ctx, *ssn)
	if err != nil {
		return err
	}
	return writeData(out, map[string]any{"employee": employee, "schedules": schedules})
}

func runScheduleAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("schedule-add")
	ssn := fs.String("ssn", "", "barista ssn")
	day := fs.String("day", "", "day of week")
	start := fs.String("start", "", "shift start, HH:MM")
	end := fs.String("end", "", "shift end, HH:MM")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	shift, err := a.staff.AddSchedule(ctx, *ssn, employees.AddScheduleInput{
		DayOfWeek: *day,
		StartTime: *start,
		EndTime:   *end,
	})
	if err != nil {
		return err
	}
	return writeData(out, shift)
}

func runPromoAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("promo-add")
	start := fs.String("start", "", "window start, RFC3339")
	end := fs.String("end", "", "window end, RFC3339")
	price := fs.String("price", "", "discounted price")
	var items stringsFlag
	fs.Var(&items, "item", "menu item covered; repeatable")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	startsAt, err := parseTime("start", *start)
	if err != nil {
		return err
	}
	endsAt, err := parseTime("end", *end)
	if err != nil {
		return err
	}
	amount, err := parseAmount("price", *price)
	if err != nil {
		return err
	}
	detail, err := a.promotions.Create(ctx, promotions.CreatePromotionInput{
		StartsAt:        startsAt,
		EndsAt:          endsAt,
		DiscountedPrice: amount,
		MenuItems:       items,
	})
	if err != nil {
		return err
	}
	return writeData(out, detail)
}

func runPromoItem(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("promo-item")
	id := fs.Uint("id", 0, "promotion id")
	item := fs.String("item", "", "menu item name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	placed, err := a.promotions.AddItem(ctx, *id, *item)
	if err != nil {
		return err
	}
	return writeData(out, placed)
}

func runPromos(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("promos")
	active := fs.Bool("active", false, "only promotions running now")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var (
		list []promotions.PromotionDetail
		err  error
	)
	if *active {
		list, err = a.promotions.Active(ctx, time.Now())
	} else {
		list, err = a.promotions.List(ctx)
	}
	if err != nil {
		return err
	}
	return writeData(out, list)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s flags", fs.Name()))
	}
	return nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be a number")
	}
	return amount, nil
}

func parseTime(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be an RFC3339 time")
	}
	return t, nil
}

// ingredientsFlag collects repeated -ingredient name=qty[:unit] flags.
type ingredientsFlag []recipes.AddIngredientInput

func (f *ingredientsFlag) String() string {
	parts := make([]string, 0, len(*f))
	for _, in := range *f {
		part := in.InventoryItemName + "=" + in.Quantity.String()
		if in.Unit != "" {
			part += ":" + in.Unit
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ",")
}

func (f *ingredientsFlag) Set(value string) error {
	name, rest, found := strings.Cut(value, "=")
	if !found {
		return fmt.Errorf("ingredient %q must be name=quantity", value)
	}
	qty, unit, _ := strings.Cut(rest, ":")
	quantity, err := decimal.NewFromString(strings.TrimSpace(qty))
	if err != nil {
		return fmt.Errorf("quantity of %q must be a number", name)
	}
	*f = append(*f, recipes.AddIngredientInput{
		InventoryItemName: strings.TrimSpace(name),
		Quantity:          quantity,
		Unit:              strings.TrimSpace(unit),
	})
	return nil
}

type stringsFlag []string

func (f *stringsFlag) String() string { return strings.Join(*f, "; ") }

func (f *stringsFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}
