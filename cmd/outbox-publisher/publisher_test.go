package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, orderID uuid.UUID, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelopePayload(t, uuid.NewString()),
		CreatedAt:     time.Now(),
	}
}

func ordersTopic() *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "orders-topic"},
		Payload:    &payloads.OrderCreatedEvent{},
	}}
}

func TestProcessBatchOtherOrdersContinueAfterFailure(t *testing.T) {
	first := orderEvent(t, uuid.New(), enums.EventOrderCreated)
	second := orderEvent(t, uuid.New(), enums.EventOrderCreated)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	p := newTestPublisher(t, repo, pub, ordersTopic(), &fakeDLQRepo{}, nil)

	n, err := p.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 fetched rows, got %d", n)
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
}

func TestProcessBatchDefersLaterEventsOfFailedOrder(t *testing.T) {
	orderID := uuid.New()
	created := orderEvent(t, orderID, enums.EventOrderCreated)
	confirmed := orderEvent(t, orderID, enums.EventOrderConfirmed)
	repo := &fakeRepo{events: []models.OutboxEvent{created, confirmed}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("unavailable")},
		fakePublishResult{err: errors.New("ordering key paused")},
	}}
	p := newTestPublisher(t, repo, pub, ordersTopic(), &fakeDLQRepo{}, nil)

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != created.ID {
		t.Fatalf("only the first event should consume an attempt, got %v", repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatalf("deferred event must not be marked published")
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != orderID.String() {
		t.Fatalf("expected ordering key resumed once, got %v", pub.resumed)
	}
}

func TestPublishSetsOrderingKeyAndAttributes(t *testing.T) {
	orderID := uuid.New()
	event := orderEvent(t, orderID, enums.EventOrderConfirmed)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	p := newTestPublisher(t, repo, pub, ordersTopic(), &fakeDLQRepo{}, nil)

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.OrderingKey != orderID.String() {
		t.Fatalf("unexpected ordering key %q", msg.OrderingKey)
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderConfirmed) || msg.Attributes["aggregate_id"] != orderID.String() {
		t.Fatalf("unexpected attributes %+v", msg.Attributes)
	}
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatalf("message data should be the stored envelope")
	}
	if len(pub.resumed) != 0 {
		t.Fatalf("no resume expected on success")
	}
}

func TestProcessBatchDeadLettersNonRetryable(t *testing.T) {
	orderID := uuid.New()
	broken := orderEvent(t, orderID, enums.EventOrderCreated)
	next := orderEvent(t, orderID, enums.EventOrderConfirmed)
	repo := &fakeRepo{events: []models.OutboxEvent{broken, next}}
	reg := &fakeRegistry{
		resolved: ordersTopic().resolved,
		failFor:  map[uuid.UUID]error{broken.ID: registry.NewNonRetryableError(errors.New("invalid payload"))},
	}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	p := newTestPublisher(t, repo, pub, reg, dlq, nil)

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != broken.ID || entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected dlq entry %+v", entry)
	}
	if !bytes.Equal(entry.Payload, broken.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != broken.ID {
		t.Fatalf("expected terminal mark, got %v", repo.terminal)
	}
	// A dead-lettered event does not hold back the rest of its order.
	if len(repo.published) != 1 || repo.published[0] != next.ID {
		t.Fatalf("expected follow-up published, got %v", repo.published)
	}
	if dlq.counted != 1 {
		t.Fatalf("expected dlq depth refresh, got %d", dlq.counted)
	}
}

func TestProcessBatchDeadLettersOnMaxAttempts(t *testing.T) {
	event := orderEvent(t, uuid.New(), enums.EventOrderCreated)
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	dlq := &fakeDLQRepo{}
	p := newTestPublisher(t, repo, pub, ordersTopic(), dlq, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts dlq entry, got %+v", dlq.entries)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal event should not also be marked failed")
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	p := newTestPublisher(t, repo, pub, ordersTopic(), &fakeDLQRepo{}, nil)

	n, err := p.processBatch(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected empty batch, got n=%d err=%v", n, err)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(0, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("unexpected first backoff %s", got)
	}
	if got := nextBackoff(800*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
	for range 20 {
		if d := withJitter(base); d < base || d >= base+jitterWindow {
			t.Fatalf("jitter out of window: %s", d)
		}
	}
}

func newTestPublisher(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Publisher {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	p, err := NewPublisher(PublisherParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct publisher: %v", err)
	}
	return p
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakePublishResult{}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	failFor  map[uuid.UUID]error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if err, ok := f.failFor[event.ID]; ok {
		return nil, err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
	counted int
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeDLQRepo) CountByReasonTx(*gorm.DB) (map[enums.OutboxDLQErrorReason]int64, error) {
	f.counted++
	counts := map[enums.OutboxDLQErrorReason]int64{}
	for _, e := range f.entries {
		counts[e.ErrorReason]++
	}
	return counts, nil
}
