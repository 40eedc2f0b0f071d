package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/pagination"
)

const (
	DefaultKey       = "main"
	verifyBatchSize  = 500
	maxEntriesListed = 1000
)

// Service reads and appends the running balance.
type Service interface {
	Latest(ctx context.Context) (decimal.Decimal, error)
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.AccountingEntry, error)
	Entries(ctx context.Context, limit int) ([]models.AccountingEntry, error)
	Page(ctx context.Context, params pagination.Params) (*EntryPage, error)
	Verify(ctx context.Context) error
}

// AppendInput describes one balance change. OrderID or InventoryItemName
// names what caused it.
type AppendInput struct {
	Delta             decimal.Decimal
	Kind              enums.LedgerEntryKind
	OrderID           *uint
	InventoryItemName *string
}

type service struct {
	repo Repository
	key  string
	now  func() time.Time
}

// NewService wires a ledger service for the named ledger.
func NewService(repo Repository, key string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &service{repo: repo, key: key, now: time.Now}, nil
}

// Latest returns the balance of the newest entry, or zero for an empty ledger.
func (s *service) Latest(ctx context.Context) (decimal.Decimal, error) {
	head, err := s.repo.Head(ctx, s.key)
	if err != nil {
		return decimal.Zero, db.Classify(err, "load ledger head")
	}
	if head == nil {
		return decimal.Zero, nil
	}
	return head.Balance, nil
}

// Append writes the next entry inside tx. It must run inside a Writer scope so
// the read of the previous balance and the write of the new one are not
// interleaved with another writer.
func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.AccountingEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger append requires a transaction")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry kind %q", input.Kind))
	}
	repo := s.repo.WithTx(tx)

	head, err := repo.HeadForUpdate(ctx, s.key)
	if err != nil {
		return nil, db.Classify(err, "lock ledger head")
	}
	now := s.now().UTC()
	if head == nil {
		head = &models.LedgerHead{LedgerKey: s.key, Balance: decimal.Zero, UpdatedAt: now}
		if err := repo.CreateHead(ctx, head); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeSerializationConflict, err, "ledger head created concurrently")
			}
			return nil, db.Classify(err, "create ledger head")
		}
	}

	next := head.Sequence + 1
	balance := head.Balance.Add(input.Delta)

	advanced, err := repo.AdvanceHead(ctx, s.key, head.Sequence, next, balance, now)
	if err != nil {
		return nil, db.Classify(err, "advance ledger head")
	}
	if !advanced {
		return nil, pkgerrors.New(pkgerrors.CodeSerializationConflict, "ledger head moved during append")
	}

	entry := &models.AccountingEntry{
		LedgerKey:         s.key,
		Sequence:          next,
		Timestamp:         now,
		Delta:             input.Delta,
		Balance:           balance,
		Kind:              input.Kind,
		OrderID:           input.OrderID,
		InventoryItemName: input.InventoryItemName,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeSerializationConflict, err, "ledger sequence taken")
		}
		return nil, db.Classify(err, "insert accounting entry")
	}
	return entry, nil
}

// Entries returns up to limit of the newest entries in sequence order.
func (s *service) Entries(ctx context.Context, limit int) ([]models.AccountingEntry, error) {
	if limit <= 0 || limit > maxEntriesListed {
		limit = maxEntriesListed
	}
	entries, err := s.repo.LatestEntries(ctx, s.key, limit)
	if err != nil {
		return nil, db.Classify(err, "list accounting entries")
	}
	return entries, nil
}

// EntryPage is one forward page of the ledger. NextCursor is empty on the last page.
type EntryPage struct {
	Entries    []models.AccountingEntry `json:"entries"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// Page walks the ledger from the oldest entry forward, keyed on sequence.
func (s *service) Page(ctx context.Context, params pagination.Params) (*EntryPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var after int64
	if cursor != nil {
		after = cursor.Sequence
	}
	limit := pagination.NormalizeLimit(params.Limit)

	entries, err := s.repo.ListEntries(ctx, s.key, after, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, db.Classify(err, "page accounting entries")
	}
	page := &EntryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Sequence: entries[limit-1].Sequence})
	}
	return page, nil
}

// MismatchError describes one entry that does not continue the ledger.
type MismatchError struct {
	Sequence int64
	Reason   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("entry %d: %s", e.Sequence, e.Reason)
}

// Verify walks the whole ledger and returns every discontinuity found,
// combined. A nil result means each balance equals the previous balance plus
// its delta and the head matches the newest entry.
func (s *service) Verify(ctx context.Context) error {
	var (
		problems error
		prevSeq  int64
		prevBal  = decimal.Zero
	)
	for {
		batch, err := s.repo.ListEntries(ctx, s.key, prevSeq, verifyBatchSize)
		if err != nil {
			return db.Classify(err, "list accounting entries")
		}
		for _, entry := range batch {
			if entry.Sequence != prevSeq+1 {
				problems = multierr.Append(problems, &MismatchError{
					Sequence: entry.Sequence,
					Reason:   fmt.Sprintf("sequence gap after %d", prevSeq),
				})
			}
			if want := prevBal.Add(entry.Delta); !want.Equal(entry.Balance) {
				problems = multierr.Append(problems, &MismatchError{
					Sequence: entry.Sequence,
					Reason:   fmt.Sprintf("balance %s, expected %s", entry.Balance.String(), want.String()),
				})
			}
			prevSeq = entry.Sequence
			prevBal = entry.Balance
		}
		if len(batch) < verifyBatchSize {
			break
		}
	}

	head, err := s.repo.Head(ctx, s.key)
	if err != nil {
		return db.Classify(err, "load ledger head")
	}
	if head != nil && (head.Sequence != prevSeq || !head.Balance.Equal(prevBal)) {
		problems = multierr.Append(problems, &MismatchError{
			Sequence: head.Sequence,
			Reason:   fmt.Sprintf("head at %d/%s, newest entry at %d/%s", head.Sequence, head.Balance.String(), prevSeq, prevBal.String()),
		})
	}
	return problems
}
