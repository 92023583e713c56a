package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/estatedesk/lead-router/pkg/logger"
)

const (
	RetentionJobName = "notification-log-retention"

	defaultRetentionDays  = 30
	defaultRetentionEvery = 24 * time.Hour
)

type notificationLogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	MarkerKey(name string) string
}

// NotificationRetentionJobParams configure the notification log pruner.
type NotificationRetentionJobParams struct {
	Logger        *logger.Logger
	Repository    notificationLogPruner
	Markers       markerStore
	RetentionDays int
	Every         time.Duration
}

// NewNotificationRetentionJob deletes notification logs past the retention
// window. It runs at most once per Every across all instances sharing Markers.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notification log repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	every := params.Every
	if every <= 0 {
		every = defaultRetentionEvery
	}
	return &notificationRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		markers:   params.Markers,
		retention: retention,
		every:     every,
		now:       time.Now,
	}, nil
}

type notificationRetentionJob struct {
	logg      *logger.Logger
	repo      notificationLogPruner
	markers   markerStore
	retention int
	every     time.Duration
	lastRun   time.Time
	now       func() time.Time
}

func (j *notificationRetentionJob) Name() string { return RetentionJobName }

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	if !j.due(ctx, now) {
		return nil
	}
	cutoff := now.Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification log retention: %w", err)
	}
	j.lastRun = now
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "notification log retention complete")
	return nil
}

// due claims the shared marker; without Redis it falls back to this process's last run.
func (j *notificationRetentionJob) due(ctx context.Context, now time.Time) bool {
	if j.markers != nil {
		claimed, err := j.markers.SetNX(ctx, j.markers.MarkerKey(RetentionJobName), now.Format(time.RFC3339), j.every)
		if err == nil {
			return claimed
		}
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "retention marker unavailable; using local schedule")
	}
	return j.lastRun.IsZero() || now.Sub(j.lastRun) >= j.every
}
