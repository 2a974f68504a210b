package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. Amounts are paise.
type OrderEventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	SourceEventType string             `bigquery:"source_event_type"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	Actor           *string            `bigquery:"actor"`
	OrderID         string             `bigquery:"order_id"`
	OrderToken      string             `bigquery:"order_token"`
	UserID          string             `bigquery:"user_id"`
	OrderStatus     string             `bigquery:"order_status"`
	PaymentStatus   string             `bigquery:"payment_status"`
	ShippingStatus  string             `bigquery:"shipping_status"`
	TotalPaise      int64              `bigquery:"total_paise"`
	ItemsPaise      *int64             `bigquery:"items_paise"`
	ChargesPaise    *int64             `bigquery:"charges_paise"`
	RefundPaise     *int64             `bigquery:"refund_paise"`
	ItemCount       *int64             `bigquery:"item_count"`
	PaymentID       *string            `bigquery:"payment_id"`
	RefundID        *string            `bigquery:"refund_id"`
	Reason          *string            `bigquery:"reason"`
	TrackingID      *string            `bigquery:"tracking_id"`
	Items           cbigquery.NullJSON `bigquery:"items"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
