package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/pagination"
)

func newTestService(t *testing.T) (*db.Client, Service) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), "")
	require.NoError(t, err)
	return client, svc
}

func appendDelta(t *testing.T, client *db.Client, svc Service, delta string) *models.AccountingEntry {
	t.Helper()
	var entry *models.AccountingEntry
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		entry, err = svc.Append(context.Background(), tx, AppendInput{
			Delta: decimal.RequireFromString(delta),
			Kind:  enums.LedgerEntryOrder,
		})
		return err
	})
	require.NoError(t, err)
	return entry
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil, "main")
	require.Error(t, err)
}

func TestLatestOnEmptyLedgerIsZero(t *testing.T) {
	_, svc := newTestService(t)
	balance, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "expected zero, got %s", balance)
}

func TestAppendAccumulatesBalance(t *testing.T) {
	client, svc := newTestService(t)

	first := appendDelta(t, client, svc, "9.00")
	second := appendDelta(t, client, svc, "-2.50")

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	assert.True(t, first.Balance.Equal(decimal.RequireFromString("9")))
	assert.True(t, second.Balance.Equal(decimal.RequireFromString("6.5")))
	assert.False(t, second.Timestamp.Before(first.Timestamp))

	balance, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("6.5")), "got %s", balance)
}

func TestLatestIsIdempotent(t *testing.T) {
	client, svc := newTestService(t)
	appendDelta(t, client, svc, "4.25")

	a, err := svc.Latest(context.Background())
	require.NoError(t, err)
	b, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	client, svc := newTestService(t)
	appendDelta(t, client, svc, "1.00")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if _, err := svc.Append(context.Background(), tx, AppendInput{Delta: decimal.NewFromInt(5), Kind: enums.LedgerEntryOrder}); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeNotFound, "later step failed")
	})
	require.Error(t, err)

	balance, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1)), "got %s", balance)

	entries, err := svc.Entries(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppendValidation(t *testing.T) {
	client, svc := newTestService(t)

	_, err := svc.Append(context.Background(), nil, AppendInput{Kind: enums.LedgerEntryOrder})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.Append(context.Background(), tx, AppendInput{Kind: "refund"})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEntriesReturnsNewestInSequenceOrder(t *testing.T) {
	client, svc := newTestService(t)
	for _, d := range []string{"1", "2", "3", "4"} {
		appendDelta(t, client, svc, d)
	}

	entries, err := svc.Entries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].Sequence)
	assert.Equal(t, int64(4), entries[1].Sequence)
	assert.True(t, entries[1].Balance.Equal(decimal.NewFromInt(10)))
}

func TestPageWalksForward(t *testing.T) {
	client, svc := newTestService(t)
	for _, d := range []string{"1", "2", "3", "4", "5"} {
		appendDelta(t, client, svc, d)
	}

	var seen []int64
	cursor := ""
	for i := 0; i < 5; i++ {
		page, err := svc.Page(context.Background(), pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, e := range page.Entries {
			seen = append(seen, e.Sequence)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestPageRejectsBadCursor(t *testing.T) {
	_, svc := newTestService(t)
	_, err := svc.Page(context.Background(), pagination.Params{Cursor: "not-a-cursor!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVerifyReportsEveryMismatch(t *testing.T) {
	client, svc := newTestService(t)
	appendDelta(t, client, svc, "3")
	appendDelta(t, client, svc, "4")
	appendDelta(t, client, svc, "5")

	require.NoError(t, svc.Verify(context.Background()))

	require.NoError(t, client.DB().Model(&models.AccountingEntry{}).
		Where("sequence = ?", 2).
		Update("balance", decimal.NewFromInt(100)).Error)

	err := svc.Verify(context.Background())
	require.Error(t, err)
	// entry 2 no longer equals 3+4 and entry 3 no longer equals its predecessor + 5
	assert.Len(t, multierr.Errors(err), 2)
	for _, problem := range multierr.Errors(err) {
		var mismatch *MismatchError
		assert.ErrorAs(t, problem, &mismatch)
	}
}

func TestAppendDetectsMovedHead(t *testing.T) {
	client, _ := newTestService(t)
	repo := &movingHeadRepo{Repository: NewRepository(client.DB())}
	svc, err := NewService(repo, "main")
	require.NoError(t, err)

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.Append(context.Background(), tx, AppendInput{Delta: decimal.NewFromInt(1), Kind: enums.LedgerEntryOrder})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSerializationConflict), "got %v", err)
}

// movingHeadRepo simulates another writer winning the compare-and-swap.
type movingHeadRepo struct {
	Repository
}

func (r *movingHeadRepo) WithTx(tx *gorm.DB) Repository {
	return &movingHeadRepo{Repository: r.Repository.WithTx(tx)}
}

func (r *movingHeadRepo) AdvanceHead(ctx context.Context, key string, expected, next int64, balance decimal.Decimal, at time.Time) (bool, error) {
	return false, nil
}
