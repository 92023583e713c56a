package enums

import "fmt"

// NotificationStatus records the outcome of a delivery attempt.
type NotificationStatus string

const (
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
	NotificationStatusSuppressed NotificationStatus = "suppressed"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusSent,
	NotificationStatusFailed,
	NotificationStatusSuppressed,
}

// IsValid checks whether the given status matches the canonical enum.
func (n NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationStatus converts raw strings into NotificationStatus.
func ParseNotificationStatus(value string) (NotificationStatus, error) {
	for _, candidate := range validNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification status %q", value)
}
