package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MemberInfo is the minimal shape RegistryMetrics needs from a member
// record, kept independent of pkg/registry to avoid an import cycle.
type MemberInfo struct {
	Location   string
	InstanceID string
	LastSeen   int64
}

// RegistryMetrics exposes the two registry-side gauges spec.md §6.3
// names: total active member count and per-member last-seen timestamp.
type RegistryMetrics struct {
	registry *prometheus.Registry

	membersTotal   prometheus.Gauge
	memberLastSeen *prometheus.GaugeVec
}

// NewRegistryMetrics builds an empty RegistryMetrics on its own
// registry.
func NewRegistryMetrics() *RegistryMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RegistryMetrics{
		registry: reg,
		membersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netring_members_total",
			Help: "Number of active members known to the registry",
		}),
		memberLastSeen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netring_member_last_seen_timestamp",
			Help: "Unix timestamp of a member's last heartbeat or registration",
		}, []string{"location", "instance_id"}),
	}
}

// UpdateMembers refreshes both gauges from the current active member
// list. Callers pass only active records; the gauge vector is reset
// first so deregistered members' stale series don't linger.
func (m *RegistryMetrics) UpdateMembers(active []MemberInfo) {
	m.memberLastSeen.Reset()
	for _, info := range active {
		m.memberLastSeen.WithLabelValues(info.Location, info.InstanceID).Set(float64(info.LastSeen))
	}
	m.membersTotal.Set(float64(len(active)))
}

// Handler exposes the registry's Prometheus text format.
func (m *RegistryMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
