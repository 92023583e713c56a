package notifications

import (
	"context"
	"time"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogRepository persists delivery attempts.
type LogRepository interface {
	WithTx(tx *gorm.DB) LogRepository
	Create(ctx context.Context, entry *models.NotificationLog) error
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]models.NotificationLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type logRepositoryImpl struct {
	db *gorm.DB
}

// NewLogRepository returns a notification log repository bound to the provided database.
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepositoryImpl{db: db}
}

func (r *logRepositoryImpl) WithTx(tx *gorm.DB) LogRepository {
	if tx == nil {
		return r
	}
	return &logRepositoryImpl{db: tx}
}

func (r *logRepositoryImpl) Create(ctx context.Context, entry *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *logRepositoryImpl) ListForLead(ctx context.Context, leadID uuid.UUID) ([]models.NotificationLog, error) {
	var rows []models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *logRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.NotificationLog{})
	return result.RowsAffected, result.Error
}
