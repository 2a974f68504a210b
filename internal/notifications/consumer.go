package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/mailer"
	"github.com/exclusivemerch/store-backend/pkg/outbox/idempotency"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const orderMailConsumer = "order-mail"

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, raw []byte) (*registry.ResolvedEvent, error)
}

// ConsumerParams wires the order mail consumer.
type ConsumerParams struct {
	Users         userLookup
	Registry      decoder
	Mailer        mailer.Sender
	Subscription  *pubsub.Subscriber
	Idempotency   *idempotency.Manager
	OperatorEmail string
	Logger        *logger.Logger
}

// Consumer turns order events into customer mails and operator alerts.
type Consumer struct {
	users         userLookup
	registry      decoder
	mailer        mailer.Sender
	subscription  *pubsub.Subscriber
	idempotency   *idempotency.Manager
	operatorEmail string
	logg          *logger.Logger
	now           func() time.Time
}

// NewConsumer builds the order mail consumer.
func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if p.Registry == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if p.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if p.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if p.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		users:         p.Users,
		registry:      p.Registry,
		mailer:        p.Mailer,
		subscription:  p.Subscription,
		idempotency:   p.Idempotency,
		operatorEmail: p.OperatorEmail,
		logg:          p.Logger,
		now:           time.Now,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

var (
	ackResult  = processResult{ack: true}
	nackResult = processResult{nack: true}
)

// errPermanent marks failures a redelivery cannot fix.
var errPermanent = errors.New("permanent notification failure")

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
		"consumer":   orderMailConsumer,
	})

	if !handles(eventType) {
		return ackResult
	}

	resolved, err := c.registry.Decode(eventType, msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode order event", err)
		return ackResult
	}

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return ackResult
	}

	err = c.idempotency.Once(logCtx, orderMailConsumer, eventID, func(ctx context.Context) error {
		return c.dispatch(ctx, eventType, resolved.Payload)
	})
	switch {
	case err == nil:
		return ackResult
	case errors.Is(err, idempotency.ErrDuplicate):
		c.logg.Info(logCtx, "event already processed")
		return ackResult
	case errors.Is(err, mailer.ErrNotConfigured):
		c.logg.Warn(logCtx, "mailer disabled; notification dropped")
		return ackResult
	case errors.Is(err, errPermanent):
		c.logg.Error(logCtx, "notification cannot be delivered", err)
		return ackResult
	default:
		c.logg.Error(logCtx, "notification handling failed", err)
		return nackResult
	}
}

func handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderConfirmed,
		enums.EventRefundProcessed,
		enums.EventShippingUpdated,
		enums.EventRefundFailed,
		enums.EventPaidAfterCancel:
		return true
	}
	return false
}

func (c *Consumer) dispatch(ctx context.Context, eventType enums.OutboxEventType, payload any) error {
	switch p := payload.(type) {
	case *payloads.OrderConfirmedEvent:
		return c.mailUser(ctx, p.OrderEvent, func(user *models.User) (mailer.Message, error) {
			return mailer.OrderConfirmation(user.Email, user.Name, p.OrderToken, p.TotalAmount, c.now())
		})
	case *payloads.ShippingUpdatedEvent:
		if p.ShippingStatus != enums.ShippingStatusShipping || p.PreviousStatus == enums.ShippingStatusShipping {
			return nil
		}
		return c.mailUser(ctx, p.OrderEvent, func(user *models.User) (mailer.Message, error) {
			return mailer.ShippingStarted(user.Email, user.Name, p.OrderToken, p.TrackingID, c.now())
		})
	case *payloads.RefundEvent:
		if eventType == enums.EventRefundFailed {
			return c.alertOperator(ctx, "Refund failed",
				fmt.Sprintf("Refund for order %s failed.", p.OrderToken),
				fmt.Sprintf("Payment id: %s, refund id: %s, amount: ₹%s", p.PaymentID, p.RefundID, p.Amount.StringFixed(2)),
				fmt.Sprintf("Reason: %s", p.Reason),
				"Issue the refund manually from the gateway dashboard.",
			)
		}
		return c.mailUser(ctx, p.OrderEvent, func(user *models.User) (mailer.Message, error) {
			return mailer.RefundConfirmation(user.Email, user.Name, p.OrderToken, p.Amount, c.now())
		})
	case *payloads.PaidAfterCancelEvent:
		return c.alertOperator(ctx, "Payment received for cancelled order",
			fmt.Sprintf("Order %s was cancelled by the user but payment %s was captured.", p.OrderToken, p.PaymentID),
			fmt.Sprintf("Amount: ₹%s", p.Amount.StringFixed(2)),
			"Refund the payment manually.",
		)
	default:
		return fmt.Errorf("%w: unexpected payload %T", errPermanent, payload)
	}
}

func (c *Consumer) mailUser(ctx context.Context, event payloads.OrderEvent, build func(*models.User) (mailer.Message, error)) error {
	ctx = c.logg.WithOrderToken(ctx, event.OrderToken)
	user, err := c.users.FindByID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s not found", errPermanent, event.UserID)
		}
		return fmt.Errorf("load user: %w", err)
	}
	msg, err := build(user)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := c.mailer.Send(ctx, msg); err != nil {
		return err
	}
	c.logg.Info(ctx, "order mail sent")
	return nil
}

func (c *Consumer) alertOperator(ctx context.Context, subject string, rows ...string) error {
	if c.operatorEmail == "" {
		c.logg.Warn(ctx, "operator email not configured; alert only logged")
		return nil
	}
	msg, err := mailer.OperatorAlert(c.operatorEmail, subject, c.now(), rows...)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := c.mailer.Send(ctx, msg); err != nil {
		return err
	}
	c.logg.Info(ctx, "operator alert sent")
	return nil
}
