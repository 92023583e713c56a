package leads

import (
	"context"
	"testing"
	"time"

	"github.com/estatedesk/lead-router/internal/dbtest"
	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGetReturnsLeadWithListing(t *testing.T) {
	db := dbtest.Open(t)
	broker := dbtest.InsertBroker(t, db, "fixed", enums.BrokerTierInternal, nil)
	lead, listing := dbtest.InsertLead(t, db, "LIS", "centro", &broker.ID, now)

	snap, err := NewRepository(db).Get(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, lead.ID, snap.Lead.ID)
	require.Equal(t, listing.ID, snap.Listing.ID)
	require.Equal(t, "LIS", snap.Listing.Region)
	require.Equal(t, "centro", snap.Listing.Locality)
	require.NotNil(t, snap.Listing.FixedBrokerID)
	require.Equal(t, broker.ID, *snap.Listing.FixedBrokerID)
	require.Equal(t, "450000", snap.Listing.Price.String())
}

func TestGetMissingLead(t *testing.T) {
	db := dbtest.Open(t)
	_, err := NewRepository(db).Get(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListUnassigned(t *testing.T) {
	db := dbtest.Open(t)
	broker := dbtest.InsertBroker(t, db, "b", enums.BrokerTierExternal, nil)

	stale, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-72*time.Hour))
	older, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-2*time.Hour))
	newer, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-time.Hour))
	assigned, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-time.Hour))
	dbtest.InsertAssignment(t, db, &models.LeadAssignment{
		LeadID: assigned.ID, BrokerID: broker.ID, Tier: enums.RouteTierFallback,
		Reason: enums.AssignmentReasonFallback, CreatedAt: now,
	})

	repo := NewRepository(db)
	since := now.Add(-48 * time.Hour)
	rows, err := repo.ListUnassigned(context.Background(), since, nil, 50)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{older.ID, newer.ID}, pendingIDs(rows))
	require.NotContains(t, pendingIDs(rows), stale.ID)
	require.True(t, rows[0].CreatedAt.Equal(older.CreatedAt))

	rows, err = repo.ListUnassigned(context.Background(), since, nil, 1)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{older.ID}, pendingIDs(rows))
}

func TestListUnassignedResumesAfterCursor(t *testing.T) {
	db := dbtest.Open(t)
	first, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-3*time.Hour))
	twinA, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-2*time.Hour))
	twinB, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-2*time.Hour))
	last, _ := dbtest.InsertLead(t, db, "LIS", "centro", nil, now.Add(-time.Hour))

	lo, hi := twinA, twinB
	if hi.ID.String() < lo.ID.String() {
		lo, hi = hi, lo
	}

	repo := NewRepository(db)
	since := now.Add(-48 * time.Hour)
	page, err := repo.ListUnassigned(context.Background(), since, nil, 2)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{first.ID, lo.ID}, pendingIDs(page))

	page, err = repo.ListUnassigned(context.Background(), since, &page[1], 2)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{hi.ID, last.ID}, pendingIDs(page))

	page, err = repo.ListUnassigned(context.Background(), since, &page[1], 2)
	require.NoError(t, err)
	require.Empty(t, page)
}

func pendingIDs(rows []Pending) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
