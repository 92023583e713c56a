package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/go-playground/validator/v10"
)

const (
	maxSLAMinutes = 7 * 24 * 60
	maxAttempts   = 50
)

// Settings is the per-pass snapshot of routing tunables.
type Settings struct {
	ExternalSLA         time.Duration
	InternalSLA         time.Duration
	MaxExternalAttempts int
	MaxInternalAttempts int
}

// SLA returns the acceptance window for a timed tier. Fixed and fallback
// routes never time out.
func (s Settings) SLA(tier enums.RouteTier) (time.Duration, bool) {
	switch tier {
	case enums.RouteTierExternal:
		return s.ExternalSLA, true
	case enums.RouteTierInternal:
		return s.InternalSLA, true
	default:
		return 0, false
	}
}

// Loader is the read surface used by the engine.
type Loader interface {
	Load(ctx context.Context) Settings
}

// ProviderParams configure the settings provider.
type ProviderParams struct {
	Logger     *logger.Logger
	Repository Repository
	Defaults   config.RoutingConfig
}

// Provider reads router_settings and substitutes defaults for missing or
// out-of-range values.
type Provider struct {
	logg     *logger.Logger
	repo     Repository
	defaults Settings
	validate *validator.Validate
}

// NewProvider builds a settings provider.
func NewProvider(params ProviderParams) (*Provider, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &Provider{
		logg:     params.Logger,
		repo:     params.Repository,
		defaults: defaultsFrom(params.Defaults),
		validate: validator.New(),
	}, nil
}

// Defaults returns the values used when the row is missing.
func (p *Provider) Defaults() Settings {
	return p.defaults
}

// Load never fails: any read error or bad value degrades to the defaults.
func (p *Provider) Load(ctx context.Context) Settings {
	row, err := p.repo.Get(ctx)
	if err != nil {
		p.logg.Error(ctx, "router settings unavailable; using defaults", err)
		return p.defaults
	}
	if row == nil {
		p.logg.Warn(ctx, "router settings row missing; using defaults")
		return p.defaults
	}

	out := p.defaults
	if v, ok := p.accept(ctx, "external_sla_minutes", row.ExternalSLAMinutes, maxSLAMinutes); ok {
		out.ExternalSLA = time.Duration(v) * time.Minute
	}
	if v, ok := p.accept(ctx, "internal_sla_minutes", row.InternalSLAMinutes, maxSLAMinutes); ok {
		out.InternalSLA = time.Duration(v) * time.Minute
	}
	if v, ok := p.accept(ctx, "max_external_attempts", row.MaxExternalAttempts, maxAttempts); ok {
		out.MaxExternalAttempts = v
	}
	if v, ok := p.accept(ctx, "max_internal_attempts", row.MaxInternalAttempts, maxAttempts); ok {
		out.MaxInternalAttempts = v
	}
	return out
}

func (p *Provider) accept(ctx context.Context, field string, value *int, limit int) (int, bool) {
	if value == nil {
		return 0, false
	}
	if err := p.validate.Var(*value, fmt.Sprintf("min=1,max=%d", limit)); err != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{"field": field, "value": *value})
		p.logg.Warn(logCtx, "router setting out of range; using default")
		return 0, false
	}
	return *value, true
}

func defaultsFrom(cfg config.RoutingConfig) Settings {
	sla := cfg.DefaultSLAMinutes
	if sla <= 0 {
		sla = 15
	}
	attempts := cfg.DefaultMaxAttempts
	if attempts <= 0 {
		attempts = 2
	}
	return Settings{
		ExternalSLA:         time.Duration(sla) * time.Minute,
		InternalSLA:         time.Duration(sla) * time.Minute,
		MaxExternalAttempts: attempts,
		MaxInternalAttempts: attempts,
	}
}
