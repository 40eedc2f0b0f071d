package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
)

type ledgerVerifier interface {
	Verify(ctx context.Context) error
}

type ledgerVerifyJob struct {
	ledger  ledgerVerifier
	metrics *metrics.LedgerMetrics
}

// NewLedgerVerifyJob re-walks the ledger and flags any entry that does not
// continue the running balance.
func NewLedgerVerifyJob(ledger ledgerVerifier, m *metrics.LedgerMetrics) (Job, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerVerifyJob{ledger: ledger, metrics: m}, nil
}

func (j *ledgerVerifyJob) Name() string { return "ledger-verify" }

func (j *ledgerVerifyJob) Run(ctx context.Context) error {
	err := j.ledger.Verify(ctx)
	j.metrics.SetConsistent(err == nil)
	return err
}
