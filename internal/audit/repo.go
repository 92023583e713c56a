package audit

import (
	"context"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository appends audit rows.
type Repository interface {
	Create(ctx context.Context, event *models.LeadAuditEvent) error
	Exists(ctx context.Context, leadID uuid.UUID, event enums.AuditEventType) (bool, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]models.LeadAuditEvent, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, event *models.LeadAuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repositoryImpl) Exists(ctx context.Context, leadID uuid.UUID, event enums.AuditEventType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LeadAuditEvent{}).
		Where("lead_id = ? AND event = ?", leadID, event).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ListForLead(ctx context.Context, leadID uuid.UUID) ([]models.LeadAuditEvent, error) {
	var rows []models.LeadAuditEvent
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
