package settings

import (
	"context"
	"errors"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads the router_settings singleton.
type Repository interface {
	Get(ctx context.Context) (*models.RouterSetting, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a settings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Get returns the singleton row, or nil when it has not been created yet.
func (r *repositoryImpl) Get(ctx context.Context) (*models.RouterSetting, error) {
	var row models.RouterSetting
	err := r.db.WithContext(ctx).Where("id = ?", models.RouterSettingID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
