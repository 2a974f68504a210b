package types

import (
	"encoding/json"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/enums"
)

// Envelope is one outbox event as the analytics worker sees it: routing
// fields from message attributes plus the stored payload.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	// Actor is "user:<id>", "admin:<id>" or "system:<name>"; empty when the
	// producer did not record one.
	Actor   string
	Payload json.RawMessage
}
