package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	analyticswriter "github.com/exclusivemerch/store-backend/internal/analytics/writer"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/shopspring/decimal"
)

type rowBuilder func(row *types.OrderEventRow, payload any) error

// rowHandler turns one decoded order event into one order_events row.
type rowHandler struct {
	writer Writer
	logg   *logger.Logger
	kind   enums.AnalyticsEventType
	build  rowBuilder
}

func (h *rowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":     envelope.EventType,
		"analytics_type": h.kind,
	})

	row := types.OrderEventRow{
		EventID:         envelope.EventID,
		EventType:       string(h.kind),
		SourceEventType: string(envelope.EventType),
		OccurredAt:      envelope.OccurredAt,
		Actor:           optional(envelope.Actor),
	}
	if err := h.build(&row, payload); err != nil {
		h.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}
	encoded, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	row.Payload = encoded

	logCtx = h.logg.WithOrderToken(logCtx, row.OrderToken)
	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}
	h.logg.Info(logCtx, "order event row inserted")
	return nil
}

func applyOrder(row *types.OrderEventRow, event payloads.OrderEvent) {
	row.OrderID = event.OrderID.String()
	row.OrderToken = event.OrderToken
	row.UserID = event.UserID.String()
	row.OrderStatus = string(event.OrderStatus)
	row.PaymentStatus = string(event.PaymentStatus)
	row.ShippingStatus = string(event.ShippingStatus)
	row.TotalPaise = razorpay.ToPaise(event.TotalAmount)
}

func applyLines(row *types.OrderEventRow, lines []payloads.Line) error {
	items, err := analyticswriter.EncodeJSON(lines)
	if err != nil {
		return fmt.Errorf("encode items json: %w", err)
	}
	var (
		count int64
		total decimal.Decimal
	)
	for _, l := range lines {
		count += int64(l.Quantity)
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	row.Items = items
	row.ItemCount = ptr(count)
	row.ItemsPaise = ptr(razorpay.ToPaise(total))
	return nil
}

func invalidPayload(payload any) error {
	return fmt.Errorf("invalid payload %T", payload)
}

func buildOrderCreatedRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	var charges decimal.Decimal
	for _, c := range event.Charges {
		charges = charges.Add(c.Amount)
	}
	row.ChargesPaise = ptr(razorpay.ToPaise(charges))
	return applyLines(row, event.Lines)
}

func buildOrderConfirmedRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderConfirmedEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	row.PaymentID = optional(event.PaymentID)
	return applyLines(row, event.Lines)
}

func buildOrderCancelledRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderCancelledEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	row.Reason = optional("cancelled by user")
	return nil
}

func buildOrderExpiredRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderExpiredEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	row.Reason = optional("pending for " + event.PendingFor)
	return applyLines(row, event.Lines)
}

func buildStockCancelledRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderStockCancelledEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	row.PaymentID = optional(event.PaymentID)
	row.RefundPaise = ptr(razorpay.ToPaise(event.RefundAmount))
	row.Reason = optional(event.Reason)
	return nil
}

func buildRefundRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.RefundEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	row.PaymentID = optional(event.PaymentID)
	row.RefundID = optional(event.RefundID)
	row.RefundPaise = ptr(razorpay.ToPaise(event.Amount))
	row.Reason = optional(event.Reason)
	return nil
}

func buildPaidAfterCancelRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.PaidAfterCancelEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	row.PaymentID = optional(event.PaymentID)
	return nil
}

func buildShippingRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.ShippingUpdatedEvent)
	if !ok {
		return invalidPayload(payload)
	}
	applyOrder(row, event.OrderEvent)
	if event.TrackingID != nil {
		row.TrackingID = optional(*event.TrackingID)
	}
	row.Reason = optional(fmt.Sprintf("%s -> %s", event.PreviousStatus, event.ShippingStatus))
	return nil
}

func ptr[T any](v T) *T { return &v }

// optional maps blank text to a NULL column.
func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
