package razorpaywebhook

// Outcome is how an event was applied. Every outcome is acknowledged to the
// gateway; only processing errors release the delivery for a retry.
type Outcome string

const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeStockCancelled  Outcome = "stock_cancelled"
	OutcomeRefundFailed    Outcome = "refund_failed"
	OutcomePaidAfterCancel Outcome = "paid_after_cancel"
	OutcomeRefunded        Outcome = "refunded"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeUnexpected      Outcome = "unexpected"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeError           Outcome = "error"
)

func (o Outcome) String() string {
	return string(o)
}
