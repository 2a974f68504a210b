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

	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/metrics"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
	CountByReasonTx(tx *gorm.DB) (map[enums.OutboxDLQErrorReason]int64, error)
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PublisherParams wires the outbox publisher loop.
type PublisherParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

// Publisher drains the outbox into Pub/Sub. Events of one order share an
// ordering key; when one fails, later events of that order in the same batch
// are deferred untouched so consumers never see them out of sequence.
type Publisher struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	metrics          *metrics.OutboxMetrics
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	now              func() time.Time
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	return &Publisher{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		publisherFactory: factory,
		metrics:          params.Metrics,
		batchSize:        positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		now:              time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; batch errors back off exponentially with jitter.
func (p *Publisher) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": p.db.Ping, "pubsub": p.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			p.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	p.refreshDLQDepth(ctx, nil)

	backoff := p.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := p.processBatch(ctx)
		switch {
		case err != nil:
			p.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, p.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
		case n >= p.batchSize:
			backoff = p.pollInterval
		default:
			backoff = p.pollInterval
			if err := sleep(ctx, withJitter(p.pollInterval)); err != nil {
				return err
			}
		}
	}
}

// inflight is one event whose publish call has been issued.
type inflight struct {
	event  models.OutboxEvent
	topic  string
	key    string
	result publishResult
	fields map[string]any
}

// processBatch locks one batch, publishes it and records the outcome of every
// row in the same transaction. It returns the number of rows fetched.
func (p *Publisher) processBatch(ctx context.Context) (int, error) {
	start := p.now()
	defer func() { p.metrics.ObserveBatch(p.now().Sub(start)) }()

	fetched := 0
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := p.repo.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return err
		}
		fetched = len(events)
		if fetched == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		// Issue every publish first so the client can batch them, then settle in order.
		pending := make([]inflight, 0, len(events))
		parked := false
		for _, event := range events {
			resolved, err := p.registry.Resolve(event)
			if err != nil {
				if err := p.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, nil); err != nil {
					return err
				}
				parked = true
				continue
			}
			pending = append(pending, p.publish(publishCtx, event, resolved))
		}

		failedKeys := map[string]struct{}{}
		for _, f := range pending {
			if _, blocked := failedKeys[f.key]; blocked {
				// The ordering key is paused; this event was rejected as collateral.
				p.metrics.IncDeferred(string(f.event.EventType))
				continue
			}

			err := settle(publishCtx, f)
			if err == nil {
				if err := p.repo.MarkPublishedTx(tx, f.event.ID); err != nil {
					return fmt.Errorf("mark published %s: %w", f.event.ID, err)
				}
				p.metrics.IncPublished(string(f.event.EventType))
				p.logg.Info(p.logg.WithFields(ctx, f.fields), "outbox event published")
				continue
			}

			var nonRetry registry.NonRetryableError
			if errors.As(err, &nonRetry) {
				if err := p.park(ctx, tx, f.event, enums.OutboxDLQReasonNonRetryable, err, f.fields); err != nil {
					return err
				}
				parked = true
				continue
			}

			failedKeys[f.key] = struct{}{}
			if f.event.AttemptCount+1 >= p.maxAttempts {
				terminal := fmt.Errorf("max publish attempts reached: %w", err)
				if err := p.park(ctx, tx, f.event, enums.OutboxDLQReasonMaxAttempts, terminal, f.fields); err != nil {
					return err
				}
				parked = true
				continue
			}

			f.fields["attempt_count"] = f.event.AttemptCount + 1
			p.logg.Warn(p.logg.WithField(p.logg.WithFields(ctx, f.fields), "error", err.Error()), "outbox publish failed")
			p.metrics.IncFailed(string(f.event.EventType))
			if err := p.repo.MarkFailedTx(tx, f.event.ID, err); err != nil {
				return fmt.Errorf("mark failure %s: %w", f.event.ID, err)
			}
		}

		for key := range failedKeys {
			if pub := p.publisherFactory(topicOf(pending, key)); pub != nil {
				pub.ResumePublish(key)
			}
		}
		if parked {
			p.refreshDLQDepth(ctx, tx)
		}
		return nil
	})
	return fetched, err
}

func (p *Publisher) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) inflight {
	topic := resolved.Descriptor.Topic
	f := inflight{
		event:  event,
		topic:  topic,
		key:    event.AggregateID.String(),
		fields: eventFields(event, resolved.Envelope, topic),
	}
	pub := p.publisherFactory(topic)
	if pub == nil {
		return f
	}
	f.result = pub.Publish(ctx, &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: f.key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   f.key,
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	return f
}

func settle(ctx context.Context, f inflight) error {
	if f.result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", f.topic))
	}
	_, err := f.result.Get(ctx)
	return err
}

func topicOf(pending []inflight, key string) string {
	for _, f := range pending {
		if f.key == key {
			return f.topic
		}
	}
	return ""
}

// park moves an event to the DLQ. Order events that never reach consumers mean
// a customer mail or an analytics row is missing, so parking raises an alert.
func (p *Publisher) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	if fields == nil {
		fields = eventFields(event, outbox.PayloadEnvelope{}, "")
	}
	fields["error_reason"] = reason
	p.logg.Alert(p.logg.WithFields(ctx, fields), "outbox event dead-lettered", cause)

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      p.now().UTC(),
	}
	if err := p.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := p.repo.MarkTerminalTx(tx, event.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	p.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (p *Publisher) refreshDLQDepth(ctx context.Context, tx *gorm.DB) {
	counts, err := p.dlq.CountByReasonTx(tx)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "dlq depth unavailable")
		return
	}
	byReason := make(map[string]int64, len(enums.OutboxDLQErrorReasons))
	for _, reason := range enums.OutboxDLQErrorReasons {
		byReason[string(reason)] = counts[reason]
	}
	p.metrics.SetDLQDepth(byReason)
}

func eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"order_id":      event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
