package cron

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
)

type outboxCounter interface {
	CountPending(tx *gorm.DB, maxAttempts int) (int64, error)
}

type outboxBacklogJob struct {
	db          txRunner
	repo        outboxCounter
	maxAttempts int
	metrics     *metrics.OutboxMetrics
}

// NewOutboxBacklogJob exports the number of undelivered outbox events.
func NewOutboxBacklogJob(db txRunner, repo outboxCounter, maxAttempts int, m *metrics.OutboxMetrics) (Job, error) {
	if db == nil || repo == nil {
		return nil, fmt.Errorf("db runner and outbox repository required")
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	return &outboxBacklogJob{db: db, repo: repo, maxAttempts: maxAttempts, metrics: m}, nil
}

func (j *outboxBacklogJob) Name() string { return "outbox-backlog" }

func (j *outboxBacklogJob) Run(ctx context.Context) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		pending, err := j.repo.CountPending(tx, j.maxAttempts)
		if err != nil {
			return fmt.Errorf("count pending outbox events: %w", err)
		}
		j.metrics.SetPending(pending)
		return nil
	})
}
