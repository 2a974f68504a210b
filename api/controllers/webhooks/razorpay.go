package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/exclusivemerch/store-backend/api/responses"
	razorpaywebhook "github.com/exclusivemerch/store-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
)

const maxWebhookBody = 1 << 20

type RazorpayWebhookService interface {
	HandleEvent(ctx context.Context, event *razorpay.Event) (razorpaywebhook.Outcome, error)
}

// RazorpayWebhookGuard claims gateway event ids so redeliveries are skipped.
type RazorpayWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// RazorpayWebhook verifies and applies gateway payment and refund events.
// Once the signature checks out every delivery is acknowledged with 200;
// processing failures go to the operator log instead of the gateway.
func RazorpayWebhook(svc RazorpayWebhookService, guard RazorpayWebhookGuard, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signatures := r.Header.Values(razorpay.SignatureHeader)
		if len(signatures) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "exactly one webhook signature required"))
			return
		}
		if !razorpay.VerifyWebhookSignature(payload, signatures[0], secret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature"))
			return
		}

		var event razorpay.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := eventIDFor(r, payload)
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"gateway_event": event.Event, "gateway_event_id": eventID})
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			// Without the guard the event is still applied; state guards make a replay a no-op.
			if logg != nil {
				logg.Error(ctx, "webhook idempotency check failed", err)
			}
		} else if alreadyProcessed {
			if logg != nil {
				logg.Info(ctx, "duplicate webhook delivery ignored")
			}
			responses.WriteSuccess(w, map[string]string{"outcome": razorpaywebhook.OutcomeDuplicate.String()})
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			// The gateway does not retry a 200. Releasing the key only lets a
			// manual resend of this event from the dashboard run again.
			if releaseErr := guard.Release(ctx, eventID); releaseErr != nil && logg != nil {
				logg.Error(ctx, "release webhook idempotency key", releaseErr)
			}
			if logg != nil {
				logg.Alert(ctx, "webhook processing failed", err)
			}
		} else if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", outcome.String()), "webhook processed")
		}

		responses.WriteSuccess(w, map[string]string{"outcome": outcome.String()})
	}
}

// eventIDFor prefers the gateway's delivery id and falls back to a digest of
// the signed body so redeliveries still collapse onto one key.
func eventIDFor(r *http.Request, payload []byte) string {
	if id := strings.TrimSpace(r.Header.Get(razorpay.EventIDHeader)); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "body:" + hex.EncodeToString(sum[:])
}
