package metrics

import "github.com/prometheus/client_golang/prometheus"

// RoutingMetrics counts assignment transitions and notification outcomes.
type RoutingMetrics struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewRoutingMetrics registers the routing metrics on the provided registerer.
func NewRoutingMetrics(reg prometheus.Registerer) *RoutingMetrics {
	if reg == nil {
		return &RoutingMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "routing",
		Name:      "transitions_total",
		Help:      "Lead routing outcomes by tier.",
	}, []string{"outcome", "tier"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "notifications_total",
		Help:      "Broker notification attempts by template and status.",
	}, []string{"template", "status"})
	reg.MustRegister(transitions, notifications)
	return &RoutingMetrics{
		transitions:   transitions,
		notifications: notifications,
	}
}

// IncTransition records one routing outcome. tier may be empty when no assignment was made.
func (m *RoutingMetrics) IncTransition(outcome, tier string) {
	if m == nil || m.transitions == nil {
		return
	}
	if tier == "" {
		tier = "none"
	}
	m.transitions.WithLabelValues(normalizeLabel(outcome), tier).Inc()
}

// IncNotification records one notification attempt.
func (m *RoutingMetrics) IncNotification(template, status string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(template), normalizeLabel(status)).Inc()
}
