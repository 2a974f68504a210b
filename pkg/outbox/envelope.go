package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/exclusivemerch/store-backend/pkg/enums"
)

// ActorRef identifies who produced the event. System actors carry a nil UserID.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
	System string     `json:"system,omitempty"`
}

// SystemActor names a background producer such as the webhook handler or the reaper.
func SystemActor(name string) *ActorRef {
	return &ActorRef{System: name}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
