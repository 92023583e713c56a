package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/estatedesk/lead-router/internal/dbtest"
	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T, repo Repository) *Recorder {
	t.Helper()
	rec, err := NewRecorder(RecorderParams{Logger: logger.Nop(), Repository: repo})
	require.NoError(t, err)
	return rec
}

func TestRecordPersistsEvent(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	rec := newRecorder(t, repo)

	leadID := uuid.New()
	prior := uuid.New()
	next := uuid.New()
	tier := enums.RouteTierInternal
	attempt := 1
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rec.Record(context.Background(), Event{
		Type:              enums.AuditAssignmentReassigned,
		LeadID:            leadID,
		PriorAssignmentID: &prior,
		NextAssignmentID:  &next,
		Tier:              &tier,
		Attempt:           &attempt,
		Details:           map[string]any{"reason": "sla_timeout"},
		At:                at,
	})

	rows, err := repo.ListForLead(context.Background(), leadID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, enums.AuditAssignmentReassigned, row.Event)
	require.Equal(t, prior, *row.PriorAssignmentID)
	require.Equal(t, next, *row.NextAssignmentID)
	require.Equal(t, enums.RouteTierInternal, *row.Tier)
	require.Equal(t, 1, *row.Attempt)
	require.True(t, row.CreatedAt.Equal(at))

	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Details), &details))
	require.Equal(t, "sla_timeout", details["reason"])
}

func TestRecordOnceSkipsDuplicates(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	rec := newRecorder(t, repo)
	leadID := uuid.New()

	for i := 0; i < 3; i++ {
		rec.RecordOnce(context.Background(), Event{Type: enums.AuditLeadUnassigned, LeadID: leadID})
	}
	rows, err := repo.ListForLead(context.Background(), leadID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "{}", rows[0].Details)
}

type failingRepo struct {
	calls int
}

func (f *failingRepo) Create(context.Context, *models.LeadAuditEvent) error {
	f.calls++
	return errors.New("disk full")
}

func (f *failingRepo) Exists(context.Context, uuid.UUID, enums.AuditEventType) (bool, error) {
	return false, errors.New("disk full")
}

func (f *failingRepo) ListForLead(context.Context, uuid.UUID) ([]models.LeadAuditEvent, error) {
	return nil, nil
}

func TestRecordSwallowsFailures(t *testing.T) {
	repo := &failingRepo{}
	rec := newRecorder(t, repo)

	require.NotPanics(t, func() {
		rec.Record(context.Background(), Event{Type: enums.AuditAssignmentCreated, LeadID: uuid.New()})
		rec.RecordOnce(context.Background(), Event{Type: enums.AuditAssignmentCreated, LeadID: uuid.New()})
		rec.Record(context.Background(), Event{Type: "bogus", LeadID: uuid.New()})
	})
	require.Equal(t, 1, repo.calls)
}
