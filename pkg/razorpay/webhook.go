package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Webhook event names handled by the store.
const (
	EventOrderPaid       = "order.paid"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"

	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	OrderStatusPaid = "paid"
)

// Event is the webhook envelope. Entities absent from an event stay nil.
type Event struct {
	Entity    string       `json:"entity"`
	AccountID string       `json:"account_id"`
	Event     string       `json:"event"`
	Contains  []string     `json:"contains"`
	CreatedAt int64        `json:"created_at"`
	Payload   EventPayload `json:"payload"`
}

// EventPayload holds the entities attached to a webhook event.
type EventPayload struct {
	Payment *PaymentEnvelope `json:"payment,omitempty"`
	Order   *OrderEnvelope   `json:"order,omitempty"`
	Refund  *RefundEnvelope  `json:"refund,omitempty"`
}

type PaymentEnvelope struct {
	Entity Payment `json:"entity"`
}

type OrderEnvelope struct {
	Entity Order `json:"entity"`
}

type RefundEnvelope struct {
	Entity Refund `json:"entity"`
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw body against the
// signature header using a constant-time comparison.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(given, SignBody(body, secret))
}

// SignBody returns the raw HMAC-SHA256 digest of body.
func SignBody(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHex is the header value the gateway would send for body.
func SignatureHex(body []byte, secret string) string {
	return hex.EncodeToString(SignBody(body, secret))
}
