package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
)

const DefaultMaxConflictRetries = 3

// TxRunner opens the transactions a Writer runs in.
type TxRunner interface {
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Writer is the serialized scope every ledger-touching operation runs in.
// The lock is taken before the transaction begins and released after it ends,
// so no two writers read the same previous balance.
type Writer struct {
	tx         TxRunner
	locker     Locker
	maxRetries int
	logg       *logger.Logger
	metrics    *metrics.LedgerMetrics
}

type WriterParams struct {
	Tx                 TxRunner
	Locker             Locker
	MaxConflictRetries int
	Logger             *logger.Logger
	Metrics            *metrics.LedgerMetrics
}

func NewWriter(params WriterParams) (*Writer, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("ledger locker required")
	}
	if params.MaxConflictRetries < 0 {
		params.MaxConflictRetries = DefaultMaxConflictRetries
	}
	return &Writer{
		tx:         params.Tx,
		locker:     params.Locker,
		maxRetries: params.MaxConflictRetries,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// Do runs fn in one transaction under the ledger lock. Serialization conflicts
// roll back and rerun fn up to the configured number of retries; fn must be
// safe to rerun from scratch.
func (w *Writer) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	for attempt := 0; ; attempt++ {
		err := w.once(ctx, fn)
		if err == nil {
			return nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeSerializationConflict) || attempt >= w.maxRetries {
			return err
		}
		w.metrics.IncRetry()
		if w.logg != nil {
			retryCtx := w.logg.WithField(ctx, "attempt", attempt+1)
			w.logg.Warn(retryCtx, "ledger transaction conflicted, retrying")
		}
	}
}

func (w *Writer) once(ctx context.Context, fn func(tx *gorm.DB) error) error {
	started := time.Now()
	unlock, err := w.locker.Lock(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire ledger lock")
	}
	w.metrics.ObserveLockWait(time.Since(started))
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil && w.logg != nil {
			w.logg.Error(ctx, "release ledger lock", uerr)
		}
	}()

	if err := w.tx.WithSerializableTx(ctx, fn); err != nil {
		return db.Classify(err, "ledger transaction")
	}
	return nil
}
