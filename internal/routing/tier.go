package routing

import (
	"github.com/estatedesk/lead-router/internal/assignments"
	"github.com/estatedesk/lead-router/internal/settings"
	"github.com/estatedesk/lead-router/pkg/enums"
)

// DecideTier picks the tier for the next attempt on a lead whose assignment
// just expired. Once a lead has reached the internal tier it never goes back
// to external brokers.
func DecideTier(counts assignments.AttemptCounts, cfg settings.Settings) enums.RouteTier {
	if counts.Internal > 0 {
		if counts.Internal < cfg.MaxInternalAttempts {
			return enums.RouteTierInternal
		}
		return enums.RouteTierFallback
	}
	if counts.External < cfg.MaxExternalAttempts {
		return enums.RouteTierExternal
	}
	if counts.Internal < cfg.MaxInternalAttempts {
		return enums.RouteTierInternal
	}
	return enums.RouteTierFallback
}
