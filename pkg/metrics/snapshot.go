package metrics

// Sample is one gauge-shaped probe result (TCP/HTTP success, or
// bandwidth Mbps) in the flat JSON wire format.
type Sample struct {
	Labels     map[string]string `json:"labels"`
	Value      float64           `json:"value"`
	DurationMS *float64          `json:"duration_ms,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// TracerouteSample is one traceroute result.
type TracerouteSample struct {
	Labels          map[string]string `json:"labels"`
	TotalHops       int               `json:"total_hops"`
	MaxHopLatencyMs float64           `json:"max_hop_latency_ms"`
	Timestamp       int64             `json:"timestamp"`
}

// DurationAggregate summarizes every probe duration sample recorded for
// one (check_type, target_location) pair.
type DurationAggregate struct {
	Count         int            `json:"count"`
	SumMs         float64        `json:"sum_ms"`
	AvgMs         float64        `json:"avg_ms"`
	PBucketCounts map[string]int `json:"p_bucket_counts"`
}

// GeneralSnapshot is the member's own vitals, included in every pushed
// snapshot per spec.md §4.2.
type GeneralSnapshot struct {
	UptimeS int64  `json:"uptime_s"`
	Version string `json:"version"`
}

// Snapshot is the full wire shape of one member's metrics, as pushed to
// the registry and returned from the member's own /metrics read path
// (the Prometheus /metrics endpoint is a separate, text-exposition
// view of the same underlying store — see prometheus.go).
type Snapshot struct {
	ConnectivityTCP  map[string]Sample            `json:"connectivity_tcp"`
	ConnectivityHTTP map[string]Sample            `json:"connectivity_http"`
	BandwidthTests   map[string]Sample            `json:"bandwidth_tests"`
	TracerouteTests  map[string]TracerouteSample  `json:"traceroute_tests"`
	CheckDurations   map[string]DurationAggregate `json:"check_durations"`
	General          GeneralSnapshot              `json:"general"`
}
