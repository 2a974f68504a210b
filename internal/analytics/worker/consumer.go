// Package worker feeds order events from the analytics subscription into the
// BigQuery router.
package worker

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/exclusivemerch/store-backend/internal/analytics/router"
	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/idempotency"
	"github.com/google/uuid"
)

const consumerName = "analytics"

// Handler writes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type deduper interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error
}

// Consumer acks everything it cannot use and nacks only failures a
// redelivery may fix.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	dedupe       deduper
	logg         *logger.Logger
}

func NewConsumer(subscription *gcppubsub.Subscriber, handler Handler, dedupe deduper, logg *logger.Logger) (*Consumer, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case dedupe == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscription: subscription, handler: handler, dedupe: dedupe, logg: logg}, nil
}

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether msg should be acked.
func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": msg.ID, "consumer": consumerName})

	envelope, err := envelopeOf(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		return true
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":    envelope.EventID,
		"event_type":  envelope.EventType,
		"order_id":    envelope.AggregateID,
		"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Warn(ctx, "invalid event id")
		return true
	}

	err = c.dedupe.Once(ctx, consumerName, eventID, func(ctx context.Context) error {
		return c.handler.Handle(ctx, envelope)
	})
	switch {
	case err == nil:
		c.logg.Info(ctx, "analytics event handled")
		return true
	case errors.Is(err, idempotency.ErrDuplicate):
		c.logg.Info(ctx, "event already processed")
		return true
	case errors.Is(err, router.ErrUnsupportedEventType):
		c.logg.Warn(ctx, "no analytics handler for event")
		return true
	default:
		c.logg.Error(ctx, "analytics event failed", err)
		return false
	}
}

// envelopeOf combines the stored outbox envelope with the message attributes
// the publisher sets. The envelope wins where both carry a value.
func envelopeOf(msg *gcppubsub.Message) (types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return types.Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id missing")
	}

	eventID := cmp.Or(strings.TrimSpace(stored.EventID), attr("event_id"))
	if eventID == "" {
		return types.Envelope{}, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = parsed
		}
	}

	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Actor:         actorLabel(stored.Actor),
		Payload:       stored.Data,
	}, nil
}

func actorLabel(actor *outbox.ActorRef) string {
	switch {
	case actor == nil:
		return ""
	case actor.System != "":
		return "system:" + actor.System
	case actor.UserID != uuid.Nil:
		return cmp.Or(string(actor.Role), "user") + ":" + actor.UserID.String()
	}
	return ""
}
