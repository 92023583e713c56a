package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/estatedesk/lead-router/internal/settings"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/logger"
)

// describeSettings reports whether the router_settings singleton was seeded
// and which values the worker will run with.
func describeSettings(ctx context.Context, logg *logger.Logger, repo settings.Repository, defaults config.RoutingConfig) (string, error) {
	row, err := repo.Get(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if row == nil {
		b.WriteString("router_settings: singleton missing, worker uses configured defaults\n")
	} else {
		fmt.Fprintf(&b, "router_settings: seeded (external_sla=%s internal_sla=%s max_external=%s max_internal=%s)\n",
			orDefault(row.ExternalSLAMinutes, "m"), orDefault(row.InternalSLAMinutes, "m"),
			orDefault(row.MaxExternalAttempts, ""), orDefault(row.MaxInternalAttempts, ""))
	}

	// Load applies the same range checks and fallbacks the worker does.
	provider, err := settings.NewProvider(settings.ProviderParams{
		Logger:     logg,
		Repository: repo,
		Defaults:   defaults,
	})
	if err != nil {
		return "", err
	}
	eff := provider.Load(ctx)
	fmt.Fprintf(&b, "effective: external_sla=%s internal_sla=%s max_external=%d max_internal=%d",
		eff.ExternalSLA, eff.InternalSLA, eff.MaxExternalAttempts, eff.MaxInternalAttempts)
	return b.String(), nil
}

func orDefault(v *int, unit string) string {
	if v == nil {
		return "default"
	}
	return fmt.Sprintf("%d%s", *v, unit)
}
