package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/google/uuid"
)

// Event describes one routing transition.
type Event struct {
	Type              enums.AuditEventType
	LeadID            uuid.UUID
	PriorAssignmentID *uuid.UUID
	NextAssignmentID  *uuid.UUID
	PriorBrokerID     *uuid.UUID
	NextBrokerID      *uuid.UUID
	Tier              *enums.RouteTier
	Attempt           *int
	Details           map[string]any
	At                time.Time
}

// Sink records transitions. Implementations never fail the caller.
type Sink interface {
	Record(ctx context.Context, event Event)
	RecordOnce(ctx context.Context, event Event)
}

// RecorderParams configure the audit recorder.
type RecorderParams struct {
	Logger     *logger.Logger
	Repository Repository
}

// Recorder writes audit events to lead_audit_events and swallows failures.
type Recorder struct {
	logg  *logger.Logger
	repo  Repository
	newID func() uuid.UUID
}

// NewRecorder builds an audit recorder.
func NewRecorder(params RecorderParams) (*Recorder, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &Recorder{logg: params.Logger, repo: params.Repository, newID: uuid.New}, nil
}

// Record appends the event.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if err := r.write(ctx, event); err != nil {
		r.logFailure(ctx, event, err)
	}
}

// RecordOnce appends the event unless the lead already has one of the same type.
func (r *Recorder) RecordOnce(ctx context.Context, event Event) {
	exists, err := r.repo.Exists(ctx, event.LeadID, event.Type)
	if err != nil {
		r.logFailure(ctx, event, err)
		return
	}
	if exists {
		return
	}
	r.Record(ctx, event)
}

func (r *Recorder) write(ctx context.Context, event Event) error {
	if !event.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown audit event %q", event.Type))
	}
	details := "{}"
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = string(raw)
	}
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return r.repo.Create(ctx, &models.LeadAuditEvent{
		ID:                r.newID(),
		Event:             event.Type,
		LeadID:            event.LeadID,
		PriorAssignmentID: event.PriorAssignmentID,
		NextAssignmentID:  event.NextAssignmentID,
		PriorBrokerID:     event.PriorBrokerID,
		NextBrokerID:      event.NextBrokerID,
		Tier:              event.Tier,
		Attempt:           event.Attempt,
		Details:           details,
		CreatedAt:         at,
	})
}

func (r *Recorder) logFailure(ctx context.Context, event Event, err error) {
	logCtx := r.logg.WithLeadID(ctx, event.LeadID.String())
	logCtx = r.logg.WithFields(logCtx, map[string]any{"audit_event": string(event.Type)})
	logCtx = r.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields())
	r.logg.Error(logCtx, "audit write failed", err)
}
