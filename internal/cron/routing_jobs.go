package cron

import (
	"context"
	"fmt"

	"github.com/estatedesk/lead-router/internal/routing"
	"github.com/estatedesk/lead-router/pkg/logger"
)

const (
	BackfillJobName   = "lead-backfill"
	EscalationJobName = "lead-escalation"
)

type unassignedProcessor interface {
	ProcessUnassigned(ctx context.Context) (routing.Summary, error)
}

type expiredProcessor interface {
	ProcessExpired(ctx context.Context) (routing.Summary, error)
}

// NewBackfillJob gives a first assignment to recent leads that have none.
func NewBackfillJob(logg *logger.Logger, engine unassignedProcessor) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if engine == nil {
		return nil, fmt.Errorf("routing engine required")
	}
	return &passJob{name: BackfillJobName, logg: logg, run: engine.ProcessUnassigned}, nil
}

// NewEscalationJob expires overdue assignments and hands each lead to the next broker.
func NewEscalationJob(logg *logger.Logger, engine expiredProcessor) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if engine == nil {
		return nil, fmt.Errorf("routing engine required")
	}
	return &passJob{name: EscalationJobName, logg: logg, run: engine.ProcessExpired}, nil
}

type passJob struct {
	name string
	logg *logger.Logger
	run  func(ctx context.Context) (routing.Summary, error)
}

func (j *passJob) Name() string { return j.name }

func (j *passJob) Run(ctx context.Context) error {
	summary, err := j.run(ctx)
	logCtx := j.logg.WithFields(ctx, summary.Fields())
	if summary.Scanned > 0 {
		j.logg.Info(logCtx, "routing pass complete")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	return nil
}
