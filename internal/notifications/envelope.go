package notifications

import (
	"time"

	"github.com/google/uuid"
)

// MessageType identifies notification requests on every transport.
const MessageType = "lead_router.notification.requested.v1"

// Meta is the envelope header shared with the downstream mailer.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Payload is the templated email request.
type Payload struct {
	Template  string         `json:"template"`
	To        string         `json:"to"`
	Variables map[string]any `json:"variables"`
	LeadID    uuid.UUID      `json:"lead_id"`
	BrokerID  *uuid.UUID     `json:"broker_id,omitempty"`
}

// Envelope is the wire shape published to the transport.
type Envelope struct {
	Meta Meta    `json:"meta"`
	Data Payload `json:"data"`
}
