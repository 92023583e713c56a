package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead is an inbound inquiry against one listing. Immutable once created.
type Lead struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID      uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	RequesterName  string    `gorm:"column:requester_name;not null"`
	RequesterEmail *string   `gorm:"column:requester_email"`
	RequesterPhone *string   `gorm:"column:requester_phone"`
	Message        string    `gorm:"column:message;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
