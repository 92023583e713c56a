package models

import "time"

// RouterSettingID is the primary key of the singleton settings row.
const RouterSettingID = 1

// RouterSetting holds the SLA tunables maintained by the back office.
type RouterSetting struct {
	ID                  int       `gorm:"column:id;primaryKey"`
	ExternalSLAMinutes  *int      `gorm:"column:external_sla_minutes"`
	InternalSLAMinutes  *int      `gorm:"column:internal_sla_minutes"`
	MaxExternalAttempts *int      `gorm:"column:max_external_attempts"`
	MaxInternalAttempts *int      `gorm:"column:max_internal_attempts"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
