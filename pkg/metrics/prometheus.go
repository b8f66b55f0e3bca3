package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promMetrics owns the Prometheus vectors spec.md §6.3 names, on a
// private registry rather than the global default one — the member's
// Store is meant to be a single owned instance per spec.md §9, and a
// package-level default registry would reintroduce the same module-
// level mutable state that design note asks to avoid.
type promMetrics struct {
	registry *prometheus.Registry

	connectivityTCP  *prometheus.GaugeVec
	connectivityHTTP *prometheus.GaugeVec
	checkDuration    *prometheus.HistogramVec
	bandwidthMbps    *prometheus.GaugeVec
	tracerouteHops   *prometheus.GaugeVec
	tracerouteLatMs  *prometheus.GaugeVec
}

func newPromMetrics() *promMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &promMetrics{
		registry: reg,
		connectivityTCP: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netring_connectivity_tcp",
			Help: "TCP connectivity check result (1 success, 0 failure)",
		}, []string{"source_location", "source_instance", "target_location", "target_instance", "target_ip"}),
		connectivityHTTP: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netring_connectivity_http",
			Help: "HTTP connectivity check result (1 success, 0 failure)",
		}, []string{"source_location", "source_instance", "target_location", "target_instance", "target_ip", "endpoint"}),
		checkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netring_check_duration_seconds",
			Help:    "Probe round-trip duration",
			Buckets: DurationBucketsSeconds,
		}, []string{"check_type", "target_location"}),
		bandwidthMbps: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netring_bandwidth_mbps",
			Help: "Measured bandwidth to a peer, in Mbps",
		}, []string{"source_location", "target_location", "target_ip"}),
		tracerouteHops: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netring_traceroute_hops_total",
			Help: "Number of hops observed to a peer",
		}, []string{"source_location", "target_location"}),
		tracerouteLatMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netring_traceroute_max_hop_latency_ms",
			Help: "Maximum observed hop latency to a peer, in ms",
		}, []string{"source_location", "target_location"}),
	}
}

func (p *promMetrics) recordTCP(labels map[string]string, value float64) {
	p.connectivityTCP.With(labels).Set(value)
}

func (p *promMetrics) recordHTTP(labels map[string]string, value float64) {
	p.connectivityHTTP.With(labels).Set(value)
}

func (p *promMetrics) recordDuration(checkType, targetLocation string, durationMs float64) {
	p.checkDuration.WithLabelValues(checkType, targetLocation).Observe(durationMs / 1000)
}

func (p *promMetrics) recordBandwidth(labels map[string]string, mbps float64) {
	p.bandwidthMbps.With(labels).Set(mbps)
}

func (p *promMetrics) recordTraceroute(labels map[string]string, totalHops int, maxHopLatencyMs float64) {
	p.tracerouteHops.With(labels).Set(float64(totalHops))
	p.tracerouteLatMs.With(labels).Set(maxHopLatencyMs)
}

// Handler exposes this store's Prometheus text format, per spec.md
// §6.2's member /metrics endpoint.
func (s *Store) Handler() http.Handler {
	return promhttp.HandlerFor(s.prom.registry, promhttp.HandlerOpts{})
}
