package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	row := func(kind enums.AnalyticsEventType, build rowBuilder) Handler {
		return &rowHandler{writer: writer, logg: logg, kind: kind, build: build}
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventOrderCreated: {
			factory: func() any { return &payloads.OrderCreatedEvent{} },
			handler: row(enums.AnalyticsEventOrderCreated, buildOrderCreatedRow),
		},
		enums.EventOrderConfirmed: {
			factory: func() any { return &payloads.OrderConfirmedEvent{} },
			handler: row(enums.AnalyticsEventOrderConfirmed, buildOrderConfirmedRow),
		},
		enums.EventOrderCancelled: {
			factory: func() any { return &payloads.OrderCancelledEvent{} },
			handler: row(enums.AnalyticsEventOrderCancelled, buildOrderCancelledRow),
		},
		enums.EventOrderExpired: {
			factory: func() any { return &payloads.OrderExpiredEvent{} },
			handler: row(enums.AnalyticsEventOrderExpired, buildOrderExpiredRow),
		},
		enums.EventOrderStockCancelled: {
			factory: func() any { return &payloads.OrderStockCancelledEvent{} },
			handler: row(enums.AnalyticsEventRefundInitiated, buildStockCancelledRow),
		},
		enums.EventRefundProcessed: {
			factory: func() any { return &payloads.RefundEvent{} },
			handler: row(enums.AnalyticsEventRefundCompleted, buildRefundRow),
		},
		enums.EventRefundFailed: {
			factory: func() any { return &payloads.RefundEvent{} },
			handler: row(enums.AnalyticsEventRefundFailed, buildRefundRow),
		},
		enums.EventPaidAfterCancel: {
			factory: func() any { return &payloads.PaidAfterCancelEvent{} },
			handler: row(enums.AnalyticsEventPaidAfterCancel, buildPaidAfterCancelRow),
		},
		enums.EventShippingUpdated: {
			factory: func() any { return &payloads.ShippingUpdatedEvent{} },
			handler: row(enums.AnalyticsEventShippingUpdated, buildShippingRow),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
