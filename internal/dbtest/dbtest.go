// Package dbtest opens an in-memory SQLite database carrying the router
// schema so repositories can be exercised without Postgres.
package dbtest

import (
	"testing"
	"time"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  address TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0,
  region TEXT NOT NULL,
  locality TEXT NOT NULL,
  fixed_broker_id TEXT,
  owner_name TEXT NOT NULL DEFAULT '',
  owner_phone TEXT,
  owner_email TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE leads (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  requester_name TEXT NOT NULL,
  requester_email TEXT,
  requester_phone TEXT,
  message TEXT NOT NULL DEFAULT '',
  created_at DATETIME
);`,
	`CREATE TABLE brokers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  tier TEXT NOT NULL,
  on_call INTEGER NOT NULL DEFAULT 0,
  experience_level INTEGER NOT NULL DEFAULT 0,
  points INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE broker_areas (
  broker_id TEXT NOT NULL,
  region TEXT NOT NULL,
  locality TEXT NOT NULL,
  PRIMARY KEY (broker_id, region, locality)
);`,
	`CREATE TABLE lead_assignments (
  id TEXT PRIMARY KEY,
  lead_id TEXT NOT NULL,
  broker_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'assigned',
  tier TEXT NOT NULL,
  reason TEXT NOT NULL,
  attempt INTEGER NOT NULL DEFAULT 1,
  previous_assignment_id TEXT,
  previous_broker_id TEXT,
  created_at DATETIME,
  expires_at DATETIME,
  accepted_at DATETIME,
  expired_at DATETIME
);`,
	`CREATE UNIQUE INDEX uq_lead_assignments_one_active ON lead_assignments (lead_id) WHERE status = 'assigned';`,
	`CREATE UNIQUE INDEX uq_lead_assignments_lead_broker ON lead_assignments (lead_id, broker_id) WHERE tier <> 'fallback';`,
	`CREATE TABLE router_settings (
  id INTEGER PRIMARY KEY,
  external_sla_minutes INTEGER,
  internal_sla_minutes INTEGER,
  max_external_attempts INTEGER,
  max_internal_attempts INTEGER,
  updated_at DATETIME
);`,
	`CREATE TABLE lead_audit_events (
  id TEXT PRIMARY KEY,
  event TEXT NOT NULL,
  lead_id TEXT NOT NULL,
  prior_assignment_id TEXT,
  next_assignment_id TEXT,
  prior_broker_id TEXT,
  next_broker_id TEXT,
  tier TEXT,
  attempt INTEGER,
  details TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME
);`,
	`CREATE TABLE notification_logs (
  id TEXT PRIMARY KEY,
  lead_id TEXT NOT NULL,
  broker_id TEXT,
  recipient TEXT NOT NULL,
  template TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT,
  message_id TEXT,
  created_at DATETIME
);`,
}

// Open returns a fresh in-memory database with every router table created.
// A single connection is used so the memory database is shared by all queries.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// BrokerOption mutates a broker fixture before insert.
type BrokerOption func(*models.Broker)

// OnCall marks the broker as part of the fallback pool.
func OnCall() BrokerOption { return func(b *models.Broker) { b.OnCall = true } }

// Inactive marks the broker as inactive.
func Inactive() BrokerOption { return func(b *models.Broker) { b.Active = false } }

// Score sets experience level and points.
func Score(experience, points int) BrokerOption {
	return func(b *models.Broker) {
		b.ExperienceLevel = experience
		b.Points = points
	}
}

// JoinedAt sets the broker's tenure timestamp.
func JoinedAt(at time.Time) BrokerOption { return func(b *models.Broker) { b.CreatedAt = at } }

// InsertBroker creates a broker covering the given areas ([region, locality] pairs).
func InsertBroker(t *testing.T, db *gorm.DB, name string, tier enums.BrokerTier, areas [][2]string, opts ...BrokerOption) *models.Broker {
	t.Helper()
	broker := &models.Broker{
		ID:        uuid.New(),
		Name:      name,
		Email:     name + "@brokers.test",
		Active:    true,
		Tier:      tier,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(broker)
	}
	require.NoError(t, db.Create(broker).Error)
	if !broker.Active {
		require.NoError(t, db.Model(broker).UpdateColumn("active", false).Error)
	}
	for _, area := range areas {
		require.NoError(t, db.Create(&models.BrokerArea{BrokerID: broker.ID, Region: area[0], Locality: area[1]}).Error)
	}
	return broker
}

// InsertLead creates a listing in the given area and a lead against it.
func InsertLead(t *testing.T, db *gorm.DB, region, locality string, fixedBroker *uuid.UUID, createdAt time.Time) (*models.Lead, *models.Listing) {
	t.Helper()
	ownerEmail := "owner@example.com"
	listing := &models.Listing{
		ID:            uuid.New(),
		Title:         "Two bedroom apartment",
		Address:       "12 Harbour Street",
		Price:         decimal.RequireFromString("450000.00"),
		Region:        region,
		Locality:      locality,
		FixedBrokerID: fixedBroker,
		OwnerName:     "Olivia Owner",
		OwnerEmail:    &ownerEmail,
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(listing).Error)
	requesterEmail := "requester@example.com"
	lead := &models.Lead{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		RequesterName:  "Riley Requester",
		RequesterEmail: &requesterEmail,
		Message:        "Is it still available?",
		CreatedAt:      createdAt,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead, listing
}

// InsertAssignment writes an assignment row as-is.
func InsertAssignment(t *testing.T, db *gorm.DB, assignment *models.LeadAssignment) *models.LeadAssignment {
	t.Helper()
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	if assignment.Status == "" {
		assignment.Status = enums.AssignmentStatusAssigned
	}
	if assignment.Attempt == 0 {
		assignment.Attempt = 1
	}
	require.NoError(t, db.Create(assignment).Error)
	return assignment
}

// Assignments returns every assignment for a lead, oldest first.
func Assignments(t *testing.T, db *gorm.DB, leadID uuid.UUID) []models.LeadAssignment {
	t.Helper()
	var rows []models.LeadAssignment
	require.NoError(t, db.Where("lead_id = ?", leadID).Order("created_at ASC, attempt ASC").Find(&rows).Error)
	return rows
}

// AuditEvents returns the audit trail for a lead in insertion order.
func AuditEvents(t *testing.T, db *gorm.DB, leadID uuid.UUID) []models.LeadAuditEvent {
	t.Helper()
	var rows []models.LeadAuditEvent
	require.NoError(t, db.Where("lead_id = ?", leadID).Order("rowid ASC").Find(&rows).Error)
	return rows
}
