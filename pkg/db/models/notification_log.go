package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatedesk/lead-router/pkg/enums"
)

// NotificationLog records each broker notification attempt.
type NotificationLog struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LeadID    uuid.UUID                `gorm:"column:lead_id;type:uuid;not null"`
	BrokerID  *uuid.UUID               `gorm:"column:broker_id;type:uuid"`
	Recipient string                   `gorm:"column:recipient;not null"`
	Template  string                   `gorm:"column:template;not null"`
	Status    enums.NotificationStatus `gorm:"column:status;not null"`
	Error     *string                  `gorm:"column:error"`
	MessageID *string                  `gorm:"column:message_id"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}
