package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatedesk/lead-router/pkg/enums"
)

// LeadAssignment is one attempt binding a lead to a broker.
type LeadAssignment struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LeadID               uuid.UUID              `gorm:"column:lead_id;type:uuid;not null"`
	BrokerID             uuid.UUID              `gorm:"column:broker_id;type:uuid;not null"`
	Status               enums.AssignmentStatus `gorm:"column:status;type:assignment_status;not null;default:'assigned'"`
	Tier                 enums.RouteTier        `gorm:"column:tier;type:route_tier;not null"`
	Reason               enums.AssignmentReason `gorm:"column:reason;not null"`
	Attempt              int                    `gorm:"column:attempt;not null;default:1"`
	PreviousAssignmentID *uuid.UUID             `gorm:"column:previous_assignment_id;type:uuid"`
	PreviousBrokerID     *uuid.UUID             `gorm:"column:previous_broker_id;type:uuid"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt            *time.Time             `gorm:"column:expires_at"`
	AcceptedAt           *time.Time             `gorm:"column:accepted_at"`
	ExpiredAt            *time.Time             `gorm:"column:expired_at"`
}
