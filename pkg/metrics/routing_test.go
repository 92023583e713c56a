package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRoutingMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRoutingMetrics(reg)
	metrics.IncTransition("reassigned", "internal")
	metrics.IncTransition("reassigned", "internal")
	metrics.IncTransition("unassigned", "")
	metrics.IncNotification("lead_assigned", "sent")
	metrics.IncNotification("lead_lost_sla_timeout", "suppressed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	cases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"lead_router_routing_transitions_total", map[string]string{"outcome": "reassigned", "tier": "internal"}, 2},
		{"lead_router_routing_transitions_total", map[string]string{"outcome": "unassigned", "tier": "none"}, 1},
		{"lead_router_notifier_notifications_total", map[string]string{"template": "lead_assigned", "status": "sent"}, 1},
		{"lead_router_notifier_notifications_total", map[string]string{"template": "lead_lost_sla_timeout", "status": "suppressed"}, 1},
	}
	for _, tc := range cases {
		got, err := fetchCounterValue(mfs, tc.name, tc.labels)
		if err != nil {
			t.Fatalf("fetch %s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s %v: expected %f got %f", tc.name, tc.labels, tc.want, got)
		}
	}
}
