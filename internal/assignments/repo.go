package assignments

import (
	"context"
	"time"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttemptCounts is the number of historical rows per tier for one lead.
type AttemptCounts struct {
	Fixed    int
	External int
	Internal int
	Fallback int
}

// For returns the count recorded for tier.
func (c AttemptCounts) For(tier enums.RouteTier) int {
	switch tier {
	case enums.RouteTierFixed:
		return c.Fixed
	case enums.RouteTierExternal:
		return c.External
	case enums.RouteTierInternal:
		return c.Internal
	case enums.RouteTierFallback:
		return c.Fallback
	default:
		return 0
	}
}

// Repository persists lead assignments. Transitions are conditional on the
// row still being assigned; a false result means another writer got there first.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.LeadAssignment) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.LeadAssignment, error)
	NormalizeFixedDeadlines(ctx context.Context) (int64, error)
	ExpireIfAssigned(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	Accept(ctx context.Context, id, brokerID uuid.UUID, now time.Time) (bool, error)
	CountAttempts(ctx context.Context, leadID uuid.UUID) (AttemptCounts, error)
	BrokersForLead(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error)
	HasAssignments(ctx context.Context, leadID uuid.UUID) (bool, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]models.LeadAssignment, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an assignments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, assignment *models.LeadAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// ListExpired returns timed rows whose deadline has passed, oldest deadline first.
func (r *repositoryImpl) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.LeadAssignment, error) {
	var rows []models.LeadAssignment
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AssignmentStatusAssigned).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Where("tier <> ?", enums.RouteTierFixed).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// NormalizeFixedDeadlines clears any deadline left on a fixed route.
func (r *repositoryImpl) NormalizeFixedDeadlines(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LeadAssignment{}).
		Where("tier = ? AND expires_at IS NOT NULL", enums.RouteTierFixed).
		UpdateColumn("expires_at", nil)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ExpireIfAssigned(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LeadAssignment{}).
		Where("id = ? AND status = ?", id, enums.AssignmentStatusAssigned).
		UpdateColumns(map[string]any{
			"status":     enums.AssignmentStatusExpired,
			"expired_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Accept(ctx context.Context, id, brokerID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LeadAssignment{}).
		Where("id = ? AND broker_id = ? AND status = ?", id, brokerID, enums.AssignmentStatusAssigned).
		UpdateColumns(map[string]any{
			"status":      enums.AssignmentStatusAccepted,
			"accepted_at": now,
			"expires_at":  nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CountAttempts(ctx context.Context, leadID uuid.UUID) (AttemptCounts, error) {
	var rows []struct {
		Tier  enums.RouteTier
		Total int
	}
	err := r.db.WithContext(ctx).
		Model(&models.LeadAssignment{}).
		Select("tier, COUNT(*) AS total").
		Where("lead_id = ?", leadID).
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return AttemptCounts{}, err
	}
	var counts AttemptCounts
	for _, row := range rows {
		switch row.Tier {
		case enums.RouteTierFixed:
			counts.Fixed = row.Total
		case enums.RouteTierExternal:
			counts.External = row.Total
		case enums.RouteTierInternal:
			counts.Internal = row.Total
		case enums.RouteTierFallback:
			counts.Fallback = row.Total
		}
	}
	return counts, nil
}

// BrokersForLead lists every broker that has held the lead in any status.
func (r *repositoryImpl) BrokersForLead(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LeadAssignment{}).
		Distinct("broker_id").
		Where("lead_id = ?", leadID).
		Pluck("broker_id", &ids).Error
	return ids, err
}

func (r *repositoryImpl) HasAssignments(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LeadAssignment{}).
		Where("lead_id = ?", leadID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ListForLead(ctx context.Context, leadID uuid.UUID) ([]models.LeadAssignment, error) {
	var rows []models.LeadAssignment
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC, attempt ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
