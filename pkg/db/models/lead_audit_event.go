package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatedesk/lead-router/pkg/enums"
)

// LeadAuditEvent is an append-only record of a routing transition.
type LeadAuditEvent struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Event             enums.AuditEventType `gorm:"column:event;not null"`
	LeadID            uuid.UUID            `gorm:"column:lead_id;type:uuid;not null"`
	PriorAssignmentID *uuid.UUID           `gorm:"column:prior_assignment_id;type:uuid"`
	NextAssignmentID  *uuid.UUID           `gorm:"column:next_assignment_id;type:uuid"`
	PriorBrokerID     *uuid.UUID           `gorm:"column:prior_broker_id;type:uuid"`
	NextBrokerID      *uuid.UUID           `gorm:"column:next_broker_id;type:uuid"`
	Tier              *enums.RouteTier     `gorm:"column:tier"`
	Attempt           *int                 `gorm:"column:attempt"`
	Details           string               `gorm:"column:details;type:jsonb;not null;default:'{}'"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}
