package enums

import "fmt"

// BrokerTier maps to the broker_tier enum maintained by the directory service.
type BrokerTier string

const (
	BrokerTierExternal BrokerTier = "external"
	BrokerTierInternal BrokerTier = "internal"
)

var validBrokerTiers = []BrokerTier{
	BrokerTierExternal,
	BrokerTierInternal,
}

func (t BrokerTier) IsValid() bool {
	for _, candidate := range validBrokerTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseBrokerTier(value string) (BrokerTier, error) {
	for _, candidate := range validBrokerTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid broker tier %q", value)
}
