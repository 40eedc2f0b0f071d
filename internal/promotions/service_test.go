package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
)

var morning = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*db.Client, Service) {
	t.Helper()
	client := dbtest.Open(t)
	gdb := client.DB()
	require.NoError(t, gdb.Create(&models.MenuItem{Name: "Latte", Price: decimal.RequireFromString("4.50")}).Error)
	require.NoError(t, gdb.Create(&models.MenuItem{Name: "Croissant", Price: decimal.RequireFromString("3.00")}).Error)
	svc, err := NewService(NewRepository(gdb), client)
	require.NoError(t, err)
	return client, svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil)
	require.Error(t, err)
}

func TestCreateWithItemsAndGet(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	names := []string{" Latte ", "Croissant"}
	created, err := svc.Create(ctx, CreatePromotionInput{
		StartsAt:        morning,
		EndsAt:          morning.Add(3 * time.Hour),
		DiscountedPrice: decimal.RequireFromString("5.99"),
		MenuItems:       names,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Latte", "Croissant"}, created.MenuItems)
	assert.Equal(t, " Latte ", names[0])

	got, err := svc.Get(ctx, created.Promotion.ID)
	require.NoError(t, err)
	assert.True(t, got.Promotion.DiscountedPrice.Equal(decimal.RequireFromString("5.99")))
	assert.ElementsMatch(t, []string{"Latte", "Croissant"}, got.MenuItems)

	_, err = svc.Get(ctx, created.Promotion.ID+100)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCreateValidatesWindowAndPrice(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	cases := map[string]CreatePromotionInput{
		"missing window": {DiscountedPrice: decimal.NewFromInt(1)},
		"ends before":    {StartsAt: morning, EndsAt: morning.Add(-time.Minute), DiscountedPrice: decimal.NewFromInt(1)},
		"negative price": {StartsAt: morning, EndsAt: morning.Add(time.Hour), DiscountedPrice: decimal.NewFromInt(-1)},
		"blank item":     {StartsAt: morning, EndsAt: morning.Add(time.Hour), MenuItems: []string{"  "}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, input)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}
}

func TestCreateUnknownMenuItemRollsBack(t *testing.T) {
	client, svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePromotionInput{
		StartsAt:  morning,
		EndsAt:    morning.Add(time.Hour),
		MenuItems: []string{"Latte", "Bagel"},
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	var promotions, items int64
	require.NoError(t, client.DB().Model(&models.Promotion{}).Count(&promotions).Error)
	require.NoError(t, client.DB().Model(&models.PromotionItem{}).Count(&items).Error)
	assert.Zero(t, promotions)
	assert.Zero(t, items)
}

func TestAddItem(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreatePromotionInput{StartsAt: morning, EndsAt: morning.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, created.MenuItems)
	id := created.Promotion.ID

	item, err := svc.AddItem(ctx, id, "Latte")
	require.NoError(t, err)
	assert.Equal(t, "Latte", item.MenuItemName)

	_, err = svc.AddItem(ctx, id, "Latte")
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	_, err = svc.AddItem(ctx, id, "Bagel")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = svc.AddItem(ctx, id+1, "Latte")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = svc.AddItem(ctx, id, "")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestListAndActive(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	breakfast, err := svc.Create(ctx, CreatePromotionInput{
		StartsAt: morning, EndsAt: morning.Add(4 * time.Hour), MenuItems: []string{"Croissant"},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreatePromotionInput{
		StartsAt: morning.Add(8 * time.Hour), EndsAt: morning.Add(10 * time.Hour), MenuItems: []string{"Latte"},
	})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, breakfast.Promotion.ID, all[0].Promotion.ID)

	active, err := svc.Active(ctx, morning.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, []string{"Croissant"}, active[0].MenuItems)

	active, err = svc.Active(ctx, morning.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, active, "ends_at is exclusive")
}
