package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/estatedesk/lead-router/internal/dbtest"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	row *models.RouterSetting
	err error
}

func (f fakeRepo) Get(context.Context) (*models.RouterSetting, error) {
	return f.row, f.err
}

func newProvider(t *testing.T, repo Repository) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderParams{
		Logger:     logger.Nop(),
		Repository: repo,
		Defaults:   config.RoutingConfig{DefaultSLAMinutes: 15, DefaultMaxAttempts: 2},
	})
	require.NoError(t, err)
	return p
}

func intPtr(v int) *int { return &v }

func TestLoadFallsBackWhenRowMissing(t *testing.T) {
	got := newProvider(t, fakeRepo{}).Load(context.Background())
	require.Equal(t, Settings{
		ExternalSLA:         15 * time.Minute,
		InternalSLA:         15 * time.Minute,
		MaxExternalAttempts: 2,
		MaxInternalAttempts: 2,
	}, got)
}

func TestLoadFallsBackOnReadError(t *testing.T) {
	p := newProvider(t, fakeRepo{err: errors.New("connection reset")})
	require.Equal(t, p.Defaults(), p.Load(context.Background()))
}

func TestLoadMergesValidFieldsOnly(t *testing.T) {
	p := newProvider(t, fakeRepo{row: &models.RouterSetting{
		ID:                  1,
		ExternalSLAMinutes:  intPtr(5),
		InternalSLAMinutes:  intPtr(0),
		MaxExternalAttempts: intPtr(1),
		MaxInternalAttempts: intPtr(-3),
	}})
	got := p.Load(context.Background())
	require.Equal(t, 5*time.Minute, got.ExternalSLA)
	require.Equal(t, 15*time.Minute, got.InternalSLA)
	require.Equal(t, 1, got.MaxExternalAttempts)
	require.Equal(t, 2, got.MaxInternalAttempts)
}

func TestSLAByTier(t *testing.T) {
	s := Settings{ExternalSLA: 5 * time.Minute, InternalSLA: 10 * time.Minute}

	d, ok := s.SLA(enums.RouteTierExternal)
	require.True(t, ok)
	require.Equal(t, 5*time.Minute, d)

	d, ok = s.SLA(enums.RouteTierInternal)
	require.True(t, ok)
	require.Equal(t, 10*time.Minute, d)

	_, ok = s.SLA(enums.RouteTierFixed)
	require.False(t, ok)
	_, ok = s.SLA(enums.RouteTierFallback)
	require.False(t, ok)
}

func TestRepositoryReadsSingleton(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	row, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, row)

	require.NoError(t, db.Create(&models.RouterSetting{ID: models.RouterSettingID, ExternalSLAMinutes: intPtr(30)}).Error)
	row, err = repo.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, 30, *row.ExternalSLAMinutes)
	require.Nil(t, row.InternalSLAMinutes)
}

func TestNewProviderValidatesDependencies(t *testing.T) {
	_, err := NewProvider(ProviderParams{Repository: fakeRepo{}})
	require.Error(t, err)
	_, err = NewProvider(ProviderParams{Logger: logger.Nop()})
	require.Error(t, err)
}
