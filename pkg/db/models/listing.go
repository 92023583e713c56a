package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is the catalog entry a lead is raised against. Owned by the
// catalog service; read-only for the router.
type Listing struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string          `gorm:"column:title;not null"`
	Address       string          `gorm:"column:address;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null"`
	Region        string          `gorm:"column:region;not null"`
	Locality      string          `gorm:"column:locality;not null"`
	FixedBrokerID *uuid.UUID      `gorm:"column:fixed_broker_id;type:uuid"`
	OwnerName     string          `gorm:"column:owner_name;not null"`
	OwnerPhone    *string         `gorm:"column:owner_phone"`
	OwnerEmail    *string         `gorm:"column:owner_email"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
