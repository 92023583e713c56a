package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/estatedesk/lead-router/internal/assignments"
	"github.com/estatedesk/lead-router/internal/audit"
	"github.com/estatedesk/lead-router/internal/brokers"
	"github.com/estatedesk/lead-router/internal/leads"
	"github.com/estatedesk/lead-router/internal/notifications"
	"github.com/estatedesk/lead-router/internal/settings"
	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	causeNoEligibleBroker = "no_eligible_broker"
	causeLeadNotFound     = "lead_not_found"
)

const (
	defaultBatchSize = 50
	defaultLookback  = 48 * time.Hour

	defaultAssignedTemplate = "lead_assigned"
	defaultLostTemplate     = "lead_lost_sla_timeout"
)

var errConcurrentTransition = pkgerrors.New(pkgerrors.CodeStateConflict, "lead changed by a concurrent transition")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Templates names the mail templates used for broker notifications.
type Templates struct {
	Assigned string
	LostLead string
}

// EngineParams configure the routing engine.
type EngineParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Settings    settings.Loader
	Assignments assignments.Repository
	Brokers     brokers.Selector
	Leads       leads.Repository
	Audit       audit.Sink
	Notifier    notifications.Sender
	Metrics     *metrics.RoutingMetrics
	BatchSize   int
	Lookback    time.Duration
	Templates   Templates
}

// Engine assigns new leads and escalates assignments whose acceptance window lapsed.
type Engine struct {
	logg        *logger.Logger
	db          txRunner
	settings    settings.Loader
	assignments assignments.Repository
	brokers     brokers.Selector
	leads       leads.Repository
	audit       audit.Sink
	notifier    notifications.Sender
	metrics     *metrics.RoutingMetrics
	batchSize   int
	lookback    time.Duration
	templates   Templates
	now         func() time.Time
	newID       func() uuid.UUID

	cursorMu sync.Mutex
	cursor   *leads.Pending
}

// NewEngine builds a routing engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings loader required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if params.Brokers == nil {
		return nil, fmt.Errorf("broker selector required")
	}
	if params.Leads == nil {
		return nil, fmt.Errorf("leads repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	templates := params.Templates
	if templates.Assigned == "" {
		templates.Assigned = defaultAssignedTemplate
	}
	if templates.LostLead == "" {
		templates.LostLead = defaultLostTemplate
	}
	return &Engine{
		logg:        params.Logger,
		db:          params.DB,
		settings:    params.Settings,
		assignments: params.Assignments,
		brokers:     params.Brokers,
		leads:       params.Leads,
		audit:       params.Audit,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		batchSize:   batch,
		lookback:    lookback,
		templates:   templates,
		now:         time.Now,
		newID:       uuid.New,
	}, nil
}

// transition is the committed outcome for one lead, used for post-commit side effects.
type transition struct {
	lead      *leads.Snapshot
	expired   *models.LeadAssignment
	displaced *models.Broker
	next      *models.LeadAssignment
	broker    *models.Broker
	// cause is set when the lead ends up without an active assignment.
	cause string
}

// ProcessExpired expires overdue assignments and reassigns each lead in its
// own transaction. Per-lead failures are counted and combined into the
// returned error; the affected rows stay assigned and are retried next pass.
func (e *Engine) ProcessExpired(ctx context.Context) (Summary, error) {
	var summary Summary
	cfg := e.settings.Load(ctx)
	now := e.now().UTC()

	if cleared, err := e.assignments.NormalizeFixedDeadlines(ctx); err != nil {
		e.logg.Error(ctx, "clearing fixed-route deadlines failed", err)
	} else if cleared > 0 {
		e.logg.Warn(e.logg.WithField(ctx, "rows", cleared), "cleared deadlines on fixed assignments")
	}

	due, err := e.assignments.ListExpired(ctx, now, e.batchSize)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired assignments")
	}

	var errs error
	for i := range due {
		if err := ctx.Err(); err != nil {
			return summary, multierr.Append(errs, err)
		}
		row := due[i]
		summary.Scanned++
		leadCtx := e.logg.WithLeadID(ctx, row.LeadID.String())
		leadCtx = e.logg.WithAssignmentID(leadCtx, row.ID.String())

		result, err := e.expireOne(leadCtx, row, cfg, now)
		if err != nil {
			if e.handleLeadError(leadCtx, &summary, err) {
				errs = multierr.Append(errs, fmt.Errorf("lead %s: %w", row.LeadID, err))
			}
			continue
		}

		summary.Expired++
		if result.next != nil {
			summary.Reassigned++
		} else {
			summary.Unassigned++
		}
		e.afterExpiry(leadCtx, result, now)
	}
	return summary, errs
}

// ProcessUnassigned gives a first assignment to recent leads that have none.
// Each pass resumes after the last lead the previous pass scanned and wraps
// back to the oldest once a short page shows the end was reached, so leads
// that cannot be routed never hold back newer ones.
func (e *Engine) ProcessUnassigned(ctx context.Context) (Summary, error) {
	var summary Summary
	cfg := e.settings.Load(ctx)
	now := e.now().UTC()

	after := e.loadCursor()
	pending, err := e.leads.ListUnassigned(ctx, now.Add(-e.lookback), after, e.batchSize)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unassigned leads")
	}
	if len(pending) < e.batchSize {
		e.storeCursor(nil)
	} else {
		e.storeCursor(&pending[len(pending)-1])
	}

	var errs error
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return summary, multierr.Append(errs, err)
		}
		leadID := p.ID
		summary.Scanned++
		leadCtx := e.logg.WithLeadID(ctx, leadID.String())

		result, err := e.assignInitial(leadCtx, leadID, cfg, now)
		if err != nil {
			if e.handleLeadError(leadCtx, &summary, err) {
				errs = multierr.Append(errs, fmt.Errorf("lead %s: %w", leadID, err))
			}
			continue
		}

		if result.next != nil {
			summary.Assigned++
		} else {
			summary.Unassigned++
		}
		e.afterInitial(leadCtx, leadID, result, now)
	}
	return summary, errs
}

func (e *Engine) loadCursor() *leads.Pending {
	e.cursorMu.Lock()
	defer e.cursorMu.Unlock()
	return e.cursor
}

func (e *Engine) storeCursor(p *leads.Pending) {
	e.cursorMu.Lock()
	defer e.cursorMu.Unlock()
	if p == nil {
		e.cursor = nil
		return
	}
	next := *p
	e.cursor = &next
}

func (e *Engine) expireOne(ctx context.Context, row models.LeadAssignment, cfg settings.Settings, now time.Time) (*transition, error) {
	var out *transition
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := e.assignments.WithTx(tx)
		selector := e.brokers.WithTx(tx)

		ok, err := store.ExpireIfAssigned(ctx, row.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errConcurrentTransition
		}
		row.Status = enums.AssignmentStatusExpired
		row.ExpiredAt = &now

		counts, err := store.CountAttempts(ctx, row.LeadID)
		if err != nil {
			return err
		}
		excluded, err := store.BrokersForLead(ctx, row.LeadID)
		if err != nil {
			return err
		}
		snap, err := e.leads.WithTx(tx).Get(ctx, row.LeadID)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			// Retrying cannot help; close the row so it leaves the expiry scan.
			out = &transition{expired: &row, cause: causeLeadNotFound}
			return nil
		}
		if err != nil {
			return err
		}
		displaced, err := selector.Get(ctx, row.BrokerID)
		if err != nil {
			return err
		}

		tier, broker, err := e.pick(ctx, selector, DecideTier(counts, cfg), snap, excluded)
		if err != nil {
			return err
		}
		result := &transition{lead: snap, expired: &row, displaced: displaced, broker: broker}
		if broker == nil {
			result.cause = causeNoEligibleBroker
		} else {
			next := e.newAssignment(row.LeadID, broker.ID, tier, counts.For(tier)+1, cfg, now)
			next.PreviousAssignmentID = &row.ID
			next.PreviousBrokerID = &row.BrokerID
			if err := store.Create(ctx, next); err != nil {
				return err
			}
			result.next = next
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (e *Engine) assignInitial(ctx context.Context, leadID uuid.UUID, cfg settings.Settings, now time.Time) (*transition, error) {
	var out *transition
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := e.assignments.WithTx(tx)
		selector := e.brokers.WithTx(tx)

		has, err := store.HasAssignments(ctx, leadID)
		if err != nil {
			return err
		}
		if has {
			return errConcurrentTransition
		}
		snap, err := e.leads.WithTx(tx).Get(ctx, leadID)
		if err != nil {
			return err
		}

		var (
			tier   enums.RouteTier
			broker *models.Broker
		)
		if fixedID := snap.Listing.FixedBrokerID; fixedID != nil {
			fixed, err := selector.Get(ctx, *fixedID)
			if err != nil {
				return err
			}
			if fixed != nil && fixed.Active {
				tier, broker = enums.RouteTierFixed, fixed
			} else {
				e.logg.Warn(e.logg.WithBrokerID(ctx, fixedID.String()), "fixed broker unavailable; routing by area")
			}
		}
		if broker == nil {
			tier, broker, err = e.pick(ctx, selector, enums.RouteTierExternal, snap, nil)
			if err != nil {
				return err
			}
		}

		result := &transition{lead: snap, broker: broker}
		if broker != nil {
			next := e.newAssignment(leadID, broker.ID, tier, 1, cfg, now)
			if err := store.Create(ctx, next); err != nil {
				return err
			}
			result.next = next
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// pick selects a broker for tier and falls through to the on-call pool when
// the tier has nobody eligible. A nil broker means the lead cannot be routed.
func (e *Engine) pick(ctx context.Context, selector brokers.Selector, tier enums.RouteTier, snap *leads.Snapshot, excluded []uuid.UUID) (enums.RouteTier, *models.Broker, error) {
	if brokerTier, ok := tier.BrokerTier(); ok {
		candidate, err := selector.SelectCandidate(ctx, brokers.Criteria{
			Tier:     brokerTier,
			Area:     brokers.Area{Region: snap.Listing.Region, Locality: snap.Listing.Locality},
			Excluded: excluded,
		})
		if err != nil {
			return tier, nil, err
		}
		if candidate != nil {
			return tier, candidate, nil
		}
	}
	fallback, err := selector.SelectFallback(ctx)
	if err != nil {
		return enums.RouteTierFallback, nil, err
	}
	return enums.RouteTierFallback, fallback, nil
}

func (e *Engine) newAssignment(leadID, brokerID uuid.UUID, tier enums.RouteTier, attempt int, cfg settings.Settings, now time.Time) *models.LeadAssignment {
	assignment := &models.LeadAssignment{
		ID:        e.newID(),
		LeadID:    leadID,
		BrokerID:  brokerID,
		Status:    enums.AssignmentStatusAssigned,
		Tier:      tier,
		Reason:    tier.Reason(),
		Attempt:   attempt,
		CreatedAt: now,
	}
	if sla, ok := cfg.SLA(tier); ok {
		deadline := now.Add(sla)
		assignment.ExpiresAt = &deadline
	}
	return assignment
}

func (e *Engine) afterExpiry(ctx context.Context, t *transition, now time.Time) {
	expired := t.expired
	e.audit.Record(ctx, audit.Event{
		Type:              enums.AuditAssignmentExpired,
		LeadID:            expired.LeadID,
		PriorAssignmentID: &expired.ID,
		PriorBrokerID:     &expired.BrokerID,
		Tier:              &expired.Tier,
		Attempt:           &expired.Attempt,
		Details:           map[string]any{"deadline": expired.ExpiresAt},
		At:                now,
	})
	e.metrics.IncTransition("expired", string(expired.Tier))

	if next := t.next; next != nil {
		e.audit.Record(ctx, audit.Event{
			Type:              enums.AuditAssignmentReassigned,
			LeadID:            next.LeadID,
			PriorAssignmentID: &expired.ID,
			NextAssignmentID:  &next.ID,
			PriorBrokerID:     &expired.BrokerID,
			NextBrokerID:      &next.BrokerID,
			Tier:              &next.Tier,
			Attempt:           &next.Attempt,
			Details:           map[string]any{"reason": string(next.Reason), "deadline": next.ExpiresAt},
			At:                now,
		})
		e.metrics.IncTransition("reassigned", string(next.Tier))
		e.logg.Info(e.logg.WithFields(ctx, map[string]any{
			"next_assignment_id": next.ID.String(),
			"broker_id":          next.BrokerID.String(),
			"tier":               string(next.Tier),
			"attempt":            next.Attempt,
		}), "lead reassigned")
		e.notify(ctx, e.templates.Assigned, t.broker, t.lead, next)
	} else {
		e.audit.Record(ctx, audit.Event{
			Type:              enums.AuditLeadUnassigned,
			LeadID:            expired.LeadID,
			PriorAssignmentID: &expired.ID,
			PriorBrokerID:     &expired.BrokerID,
			Details:           map[string]any{"cause": t.cause},
			At:                now,
		})
		e.metrics.IncTransition("unassigned", "")
		if t.cause == causeLeadNotFound {
			e.logg.Warn(ctx, "expired assignment points at a missing lead; closed without reassignment")
		} else {
			e.logg.Warn(ctx, "lead left unassigned; every tier exhausted")
		}
	}

	e.notify(ctx, e.templates.LostLead, t.displaced, t.lead, expired)
}

func (e *Engine) afterInitial(ctx context.Context, leadID uuid.UUID, t *transition, now time.Time) {
	next := t.next
	if next == nil {
		e.audit.RecordOnce(ctx, audit.Event{
			Type:    enums.AuditLeadUnassigned,
			LeadID:  leadID,
			Details: map[string]any{"cause": causeNoEligibleBroker},
			At:      now,
		})
		e.metrics.IncTransition("unassigned", "")
		e.logg.Warn(ctx, "new lead has no eligible broker")
		return
	}

	e.audit.Record(ctx, audit.Event{
		Type:             enums.AuditAssignmentCreated,
		LeadID:           leadID,
		NextAssignmentID: &next.ID,
		NextBrokerID:     &next.BrokerID,
		Tier:             &next.Tier,
		Attempt:          &next.Attempt,
		Details:          map[string]any{"reason": string(next.Reason), "deadline": next.ExpiresAt},
		At:               now,
	})
	e.metrics.IncTransition("assigned", string(next.Tier))
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"assignment_id": next.ID.String(),
		"broker_id":     next.BrokerID.String(),
		"tier":          string(next.Tier),
	}), "lead assigned")
	e.notify(ctx, e.templates.Assigned, t.broker, t.lead, next)
}

// notify is best-effort: the assignment is already committed.
func (e *Engine) notify(ctx context.Context, template string, broker *models.Broker, snap *leads.Snapshot, assignment *models.LeadAssignment) {
	if broker == nil || snap == nil || assignment == nil {
		return
	}
	err := e.notifier.Send(ctx, notifications.Notification{
		LeadID:    assignment.LeadID,
		BrokerID:  &broker.ID,
		To:        broker.Email,
		Template:  template,
		Variables: templateVariables(snap, assignment, broker),
	})
	switch {
	case err == nil:
	case errors.Is(err, notifications.ErrSuppressed):
		e.logg.Debug(e.logg.WithBrokerID(ctx, broker.ID.String()), "notification suppressed by cooldown")
	default:
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
			"broker_id": broker.ID.String(),
			"template":  template,
			"error":     err.Error(),
		}), "notification not delivered")
	}
}

// handleLeadError counts a per-lead error and reports whether it is a real failure.
func (e *Engine) handleLeadError(ctx context.Context, summary *Summary, err error) bool {
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		summary.Skipped++
		e.metrics.IncTransition("skipped", "")
		e.logg.Debug(ctx, "lead skipped; concurrent transition")
		return false
	}
	summary.Failed++
	e.metrics.IncTransition("failed", "")
	e.logg.Error(e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "lead routing failed; will retry next pass", err)
	return true
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if pkgerrors.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "assignment already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "routing transaction")
}
