package enums

import "fmt"

// RouteTier is the escalation class an assignment was made under.
type RouteTier string

const (
	RouteTierFixed    RouteTier = "fixed"
	RouteTierExternal RouteTier = "external"
	RouteTierInternal RouteTier = "internal"
	RouteTierFallback RouteTier = "fallback"
)

var validRouteTiers = []RouteTier{
	RouteTierFixed,
	RouteTierExternal,
	RouteTierInternal,
	RouteTierFallback,
}

func (t RouteTier) IsValid() bool {
	for _, candidate := range validRouteTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// BrokerTier returns the broker classification that serves this route tier.
// Only the external and internal tiers map to a classification.
func (t RouteTier) BrokerTier() (BrokerTier, bool) {
	switch t {
	case RouteTierExternal:
		return BrokerTierExternal, true
	case RouteTierInternal:
		return BrokerTierInternal, true
	default:
		return "", false
	}
}

// Reason returns the assignment reason recorded for this tier.
func (t RouteTier) Reason() AssignmentReason {
	switch t {
	case RouteTierFixed:
		return AssignmentReasonFixedBroker
	case RouteTierFallback:
		return AssignmentReasonFallback
	default:
		return AssignmentReasonAreaMatch
	}
}

func ParseRouteTier(value string) (RouteTier, error) {
	for _, candidate := range validRouteTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid route tier %q", value)
}

// AssignmentReason records why a broker was chosen.
type AssignmentReason string

const (
	AssignmentReasonFixedBroker AssignmentReason = "fixed_broker"
	AssignmentReasonAreaMatch   AssignmentReason = "area_match"
	AssignmentReasonFallback    AssignmentReason = "fallback"
)
