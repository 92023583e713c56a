package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatedesk/lead-router/pkg/enums"
)

// Broker is a sales agent from the directory service.
type Broker struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string           `gorm:"column:name;not null"`
	Email           string           `gorm:"column:email;not null"`
	Phone           *string          `gorm:"column:phone"`
	Active          bool             `gorm:"column:active;not null;default:true"`
	Tier            enums.BrokerTier `gorm:"column:tier;type:broker_tier;not null"`
	OnCall          bool             `gorm:"column:on_call;not null;default:false"`
	ExperienceLevel int              `gorm:"column:experience_level;not null;default:0"`
	Points          int              `gorm:"column:points;not null;default:0"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// Score is the tie-break ranking used after fairness ordering.
func (b Broker) Score() int {
	return b.ExperienceLevel + b.Points
}

// BrokerArea is one geography a broker covers.
type BrokerArea struct {
	BrokerID uuid.UUID `gorm:"column:broker_id;type:uuid;primaryKey"`
	Region   string    `gorm:"column:region;primaryKey"`
	Locality string    `gorm:"column:locality;primaryKey"`
}
