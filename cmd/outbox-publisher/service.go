package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/config"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	sendTimeout         = 15 * time.Second
	idleCeiling         = 10 * time.Second
	jitterSpread        = 250 * time.Millisecond
)

// Reasons recorded when a row is parked.
const (
	parkedUndeliverable = "undeliverable"
	parkedExhausted     = "attempts_exhausted"
)

type txPinger interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sender publishes one message and reports the broker's verdict.
type sender interface {
	Publish(context.Context, *gcppubsub.Message) ack
}

type ack interface {
	Get(context.Context) (string, error)
}

type senderFor func(topic string) sender

type RelayParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       txPinger
	PubSub   topicSource
	Store    eventStore
	Resolver eventResolver
	Senders  senderFor
	Metrics  *metrics.OutboxMetrics
}

// Relay moves committed outbox rows onto their Pub/Sub topics. Each batch is
// claimed and settled inside one transaction; a row is marked published,
// failed for a later retry, or parked for good.
type Relay struct {
	logg        *logger.Logger
	db          txPinger
	pubsub      topicSource
	store       eventStore
	resolver    eventResolver
	senders     senderFor
	metrics     *metrics.OutboxMetrics
	batch       int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("outbox relay: config required")
	case params.Logger == nil:
		return nil, errors.New("outbox relay: logger required")
	case params.DB == nil:
		return nil, errors.New("outbox relay: database required")
	case params.PubSub == nil:
		return nil, errors.New("outbox relay: pubsub required")
	case params.Store == nil:
		return nil, errors.New("outbox relay: event store required")
	case params.Resolver == nil:
		return nil, errors.New("outbox relay: event resolver required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		store:       params.Store,
		resolver:    params.Resolver,
		senders:     params.Senders,
		metrics:     params.Metrics,
		batch:       orDefault(params.Config.Outbox.BatchSize, fallbackBatch),
		maxAttempts: orDefault(params.Config.Outbox.MaxAttempts, fallbackMaxAttempts),
		poll:        fallbackPoll,
	}
	if ms := params.Config.Outbox.PollIntervalMS; ms > 0 {
		r.poll = time.Duration(ms) * time.Millisecond
	}
	if r.senders == nil {
		r.senders = r.topicSender
	}
	return r, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run drains the outbox until ctx ends. A drained batch is followed
// immediately by the next; an empty one waits a poll interval; a failing one
// waits progressively longer.
func (r *Relay) Run(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{{"database", r.db.Ping}, {"pubsub", r.pubsub.Ping}}
	for _, c := range checks {
		if err := c.ping(ctx); err != nil {
			r.logg.Error(ctx, c.name+" unreachable", err)
			return fmt.Errorf("%s unreachable: %w", c.name, err)
		}
	}

	delay := newRetryDelay(r.poll, idleCeiling)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		handled, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch aborted", err)
			err = wait(ctx, delay.grow())
		case handled > 0:
			delay.reset()
			continue
		default:
			delay.reset()
			err = wait(ctx, jittered(r.poll))
		}
		if err != nil {
			return err
		}
	}
}

// drain claims one batch and settles every row in it. It reports how many
// rows were claimed.
func (r *Relay) drain(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return err
		}
		handled = len(events)
		for _, event := range events {
			if err := r.settle(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return handled, err
}

// settle publishes one row and records the outcome. The returned error is a
// bookkeeping failure that aborts the batch; broker errors are recorded on
// the row instead.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		return r.park(ctx, tx, event, "", parkedUndeliverable, err)
	}
	topic := resolved.Descriptor.Topic

	sendErr := r.send(ctx, topic, messageFor(event, resolved))
	if sendErr == nil {
		if err := r.store.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, err)
		}
		r.metrics.IncPublished(string(event.EventType))
		r.logg.Info(r.logg.WithFields(ctx, eventLog(event, topic)), "outbox event delivered")
		return nil
	}

	var fatal registry.NonRetryableError
	if errors.As(sendErr, &fatal) {
		return r.park(ctx, tx, event, topic, parkedUndeliverable, sendErr)
	}
	attempts := event.AttemptCount + 1
	if attempts >= r.maxAttempts {
		return r.park(ctx, tx, event, topic, parkedExhausted,
			fmt.Errorf("gave up after %d attempts: %w", attempts, sendErr))
	}

	fields := eventLog(event, topic)
	fields["attempt_count"] = attempts
	fields["error"] = sendErr.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox delivery failed, will retry")
	if err := r.store.MarkFailedTx(tx, event.ID, sendErr); err != nil {
		return fmt.Errorf("mark %s failed: %w", event.ID, err)
	}
	r.metrics.IncFailed(string(event.EventType))
	return nil
}

// park keeps the row and its last error but takes it out of rotation.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic, reason string, cause error) error {
	fields := eventLog(event, topic)
	fields["parked"] = reason
	fields["error"] = cause.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox event parked")

	if err := r.store.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", event.ID, err)
	}
	r.metrics.IncFailed(string(event.EventType))
	return nil
}

func (r *Relay) send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	s := r.senders(topic)
	if s == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	res := s.Publish(sendCtx, msg)
	if res == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %s returned no result", topic))
	}
	_, err := res.Get(sendCtx)
	return err
}

func messageFor(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID,
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func eventLog(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID,
		"attempt_count": event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func (r *Relay) topicSender(topic string) sender {
	p := r.pubsub.Publisher(topic)
	if p == nil {
		return nil
	}
	return topicPublisher{p}
}

type topicPublisher struct{ p *gcppubsub.Publisher }

func (t topicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) ack {
	return t.p.Publish(ctx, msg)
}

// retryDelay doubles from base up to ceiling while batches keep failing.
type retryDelay struct {
	base, ceiling, current time.Duration
}

func newRetryDelay(base, ceiling time.Duration) *retryDelay {
	return &retryDelay{base: base, ceiling: ceiling, current: base}
}

func (d *retryDelay) grow() time.Duration {
	d.current = min(d.current*2, d.ceiling)
	return jittered(d.current)
}

func (d *retryDelay) reset() { d.current = d.base }

func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterSpread)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
