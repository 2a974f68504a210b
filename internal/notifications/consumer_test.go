package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/mailer"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/idempotency"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type memoryStore struct {
	keys map[string]bool
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

type stubUsers struct {
	users map[uuid.UUID]*models.User
	err   error
}

func (s *stubUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type recordingMailer struct {
	sent []mailer.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type harness struct {
	consumer *Consumer
	mail     *recordingMailer
	store    *memoryStore
	user     *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := &memoryStore{keys: map[string]bool{}}
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	if err != nil {
		t.Fatalf("NewEventRegistry: %v", err)
	}
	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", Name: "Asha"}
	mail := &recordingMailer{}
	consumer, err := NewConsumer(ConsumerParams{
		Users:         &stubUsers{users: map[uuid.UUID]*models.User{user.ID: user}},
		Registry:      reg,
		Mailer:        mail,
		Subscription:  &pubsub.Subscriber{},
		Idempotency:   manager,
		OperatorEmail: "ops@example.com",
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return &harness{consumer: consumer, mail: mail, store: store, user: user}
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func (h *harness) orderEvent() payloads.OrderEvent {
	return payloads.OrderEvent{
		OrderID:     uuid.New(),
		OrderToken:  "exc_abc",
		UserID:      h.user.ID,
		TotalAmount: decimal.RequireFromString("548"),
	}
}

func TestConsumerSendsConfirmationOnce(t *testing.T) {
	h := newHarness(t)
	msg := buildMessage(t, enums.EventOrderConfirmed, payloads.OrderConfirmedEvent{OrderEvent: h.orderEvent(), PaymentID: "pay_1"})

	if res := h.consumer.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if res := h.consumer.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack on redelivery, got %+v", res)
	}
	if len(h.mail.sent) != 1 {
		t.Fatalf("expected exactly one mail, got %d", len(h.mail.sent))
	}
	sent := h.mail.sent[0]
	if sent.To[0] != "buyer@example.com" || sent.Subject != "Order Confirmation" || !strings.Contains(sent.HTML, "exc_abc") {
		t.Fatalf("unexpected mail %+v", sent)
	}
}

func TestConsumerShippingMailOnlyWhenEnteringShipping(t *testing.T) {
	h := newHarness(t)

	processing := h.orderEvent()
	processing.ShippingStatus = enums.ShippingStatusProcessing
	h.consumer.process(context.Background(), buildMessage(t, enums.EventShippingUpdated, payloads.ShippingUpdatedEvent{
		OrderEvent:     processing,
		PreviousStatus: enums.ShippingStatusNotShipped,
	}))
	if len(h.mail.sent) != 0 {
		t.Fatalf("processing must not send mail, got %d", len(h.mail.sent))
	}

	shipping := h.orderEvent()
	shipping.ShippingStatus = enums.ShippingStatusShipping
	tracking := "TRK-1"
	h.consumer.process(context.Background(), buildMessage(t, enums.EventShippingUpdated, payloads.ShippingUpdatedEvent{
		OrderEvent:     shipping,
		PreviousStatus: enums.ShippingStatusProcessing,
		TrackingID:     &tracking,
	}))
	if len(h.mail.sent) != 1 || h.mail.sent[0].Subject != "Shipping Started" {
		t.Fatalf("expected shipping mail, got %+v", h.mail.sent)
	}
}

func TestConsumerRefundEvents(t *testing.T) {
	h := newHarness(t)

	h.consumer.process(context.Background(), buildMessage(t, enums.EventRefundProcessed, payloads.RefundEvent{
		OrderEvent: h.orderEvent(),
		RefundID:   "rfnd_1",
		Amount:     decimal.RequireFromString("548"),
	}))
	h.consumer.process(context.Background(), buildMessage(t, enums.EventRefundFailed, payloads.RefundEvent{
		OrderEvent: h.orderEvent(),
		RefundID:   "rfnd_2",
		Amount:     decimal.RequireFromString("548"),
		Reason:     "insufficient balance",
	}))

	if len(h.mail.sent) != 2 {
		t.Fatalf("expected two mails, got %d", len(h.mail.sent))
	}
	if h.mail.sent[0].To[0] != "buyer@example.com" || h.mail.sent[0].Subject != "Refund processed successfully" {
		t.Fatalf("unexpected refund mail %+v", h.mail.sent[0])
	}
	alert := h.mail.sent[1]
	if alert.To[0] != "ops@example.com" || !strings.HasPrefix(alert.Subject, "[ALERT]") || !strings.Contains(alert.HTML, "insufficient balance") {
		t.Fatalf("unexpected operator alert %+v", alert)
	}
}

func TestConsumerPaidAfterCancelAlertsOperator(t *testing.T) {
	h := newHarness(t)
	h.consumer.process(context.Background(), buildMessage(t, enums.EventPaidAfterCancel, payloads.PaidAfterCancelEvent{
		OrderEvent: h.orderEvent(),
		PaymentID:  "pay_9",
		Amount:     decimal.RequireFromString("548"),
	}))
	if len(h.mail.sent) != 1 || h.mail.sent[0].To[0] != "ops@example.com" || !strings.Contains(h.mail.sent[0].HTML, "pay_9") {
		t.Fatalf("expected operator alert, got %+v", h.mail.sent)
	}
}

func TestConsumerSkipsUnhandledEvents(t *testing.T) {
	h := newHarness(t)
	res := h.consumer.process(context.Background(), buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderEvent: h.orderEvent()}))
	if !res.ack || len(h.mail.sent) != 0 || len(h.store.keys) != 0 {
		t.Fatalf("order_created must be acked without side effects")
	}
}

func TestConsumerNacksAndClearsKeyOnSendFailure(t *testing.T) {
	h := newHarness(t)
	h.mail.err = errors.New("smtp down")
	msg := buildMessage(t, enums.EventOrderConfirmed, payloads.OrderConfirmedEvent{OrderEvent: h.orderEvent()})

	if res := h.consumer.process(context.Background(), msg); !res.nack {
		t.Fatalf("expected nack, got %+v", res)
	}
	if len(h.store.keys) != 0 {
		t.Fatalf("idempotency key must be released for redelivery")
	}

	h.mail.err = nil
	if res := h.consumer.process(context.Background(), msg); !res.ack || len(h.mail.sent) != 1 {
		t.Fatalf("redelivery should send the mail")
	}
}

func TestConsumerAcksPermanentFailures(t *testing.T) {
	h := newHarness(t)

	missingUser := h.orderEvent()
	missingUser.UserID = uuid.New()
	if res := h.consumer.process(context.Background(), buildMessage(t, enums.EventOrderConfirmed, payloads.OrderConfirmedEvent{OrderEvent: missingUser})); !res.ack {
		t.Fatalf("missing user should ack, got %+v", res)
	}

	h.mail.err = mailer.ErrNotConfigured
	if res := h.consumer.process(context.Background(), buildMessage(t, enums.EventOrderConfirmed, payloads.OrderConfirmedEvent{OrderEvent: h.orderEvent()})); !res.ack {
		t.Fatalf("disabled mailer should ack, got %+v", res)
	}

	garbage := &pubsub.Message{Data: []byte("{"), Attributes: map[string]string{"event_type": string(enums.EventOrderConfirmed)}}
	if res := h.consumer.process(context.Background(), garbage); !res.ack {
		t.Fatalf("undecodable body should ack, got %+v", res)
	}
}
