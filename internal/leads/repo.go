package leads

import (
	"context"
	"errors"
	"time"

	"github.com/estatedesk/lead-router/pkg/db/models"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot is a lead together with the listing it was raised against.
type Snapshot struct {
	Lead    models.Lead
	Listing models.Listing
}

// Pending is a lead still waiting for its first assignment. Its position in
// the backfill scan is (CreatedAt, ID), so it also serves as the scan cursor.
type Pending struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// Repository reads leads and their listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, leadID uuid.UUID) (*Snapshot, error)
	ListUnassigned(ctx context.Context, since time.Time, after *Pending, limit int) ([]Pending, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a leads repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Get(ctx context.Context, leadID uuid.UUID) (*Snapshot, error) {
	var snap Snapshot
	if err := r.db.WithContext(ctx).Where("id = ?", leadID).Take(&snap.Lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", snap.Lead.ListingID).Take(&snap.Listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, err
	}
	return &snap, nil
}

// ListUnassigned returns leads created at or after since with no assignment
// rows, oldest first. A non-nil after resumes the scan past that lead.
func (r *repositoryImpl) ListUnassigned(ctx context.Context, since time.Time, after *Pending, limit int) ([]Pending, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Select("id", "created_at").
		Where("created_at >= ?", since).
		Where("NOT EXISTS (SELECT 1 FROM lead_assignments a WHERE a.lead_id = leads.id)")
	if after != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []Pending
	err := query.
		Order("created_at ASC, id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
