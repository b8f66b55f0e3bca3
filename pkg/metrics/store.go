package metrics

import (
	"strconv"
	"sync"
	"time"
)

// DurationBucketsSeconds are the histogram bucket boundaries spec.md
// §6.3 assigns to netring_check_duration_seconds.
var DurationBucketsSeconds = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10}

type tcpEntry struct {
	labels     map[string]string
	value      float64
	durationMs float64
	at         time.Time
}

type httpEntry struct {
	labels     map[string]string
	value      float64
	durationMs float64
	at         time.Time
}

type bandwidthEntry struct {
	labels map[string]string
	mbps   float64
	at     time.Time
}

type tracerouteEntry struct {
	labels          map[string]string
	totalHops       int
	maxHopLatencyMs float64
	at              time.Time
}

type durationAgg struct {
	count   int
	sumMs   float64
	buckets []int // parallel to DurationBucketsSeconds, cumulative-less (per-bucket) counts
}

// Store is the single owned instance spec.md §9's "global mutable
// probe state" design note maps to: every probe result and duration
// sample for one member process lives here, behind one mutex. Reads
// (Snapshot, the local /metrics handler) take the same mutex briefly to
// copy out a consistent view, per spec.md §5's concurrency model.
type Store struct {
	mu sync.Mutex

	sourceLocation string
	sourceInstance string
	version        string
	startedAt      time.Time

	tcp        map[ProbeKey]tcpEntry
	http       map[ProbeKey]httpEntry
	bandwidth  map[ProbeKey]bandwidthEntry
	traceroute map[ProbeKey]tracerouteEntry
	durations  map[DurationKey]*durationAgg

	prom *promMetrics
}

// NewStore builds an empty Store for one member instance.
func NewStore(sourceLocation, sourceInstance, version string) *Store {
	return &Store{
		sourceLocation: sourceLocation,
		sourceInstance: sourceInstance,
		version:        version,
		startedAt:      time.Now(),
		tcp:            make(map[ProbeKey]tcpEntry),
		http:           make(map[ProbeKey]httpEntry),
		bandwidth:      make(map[ProbeKey]bandwidthEntry),
		traceroute:     make(map[ProbeKey]tracerouteEntry),
		durations:      make(map[DurationKey]*durationAgg),
		prom:           newPromMetrics(),
	}
}

// RecordTCP stores a TCP probe's outcome (1 success / 0 failure) and
// duration.
func (s *Store) RecordTCP(targetLocation, targetInstance, targetIP string, success bool, durationMs float64) {
	key := ProbeKey{TargetInstance: targetInstance, ProbeType: "tcp"}
	labels := map[string]string{
		"source_location": s.sourceLocation,
		"source_instance": s.sourceInstance,
		"target_location": targetLocation,
		"target_instance": targetInstance,
		"target_ip":       targetIP,
	}
	value := boolToFloat(success)

	s.mu.Lock()
	s.tcp[key] = tcpEntry{labels: labels, value: value, durationMs: durationMs, at: time.Now()}
	s.addDuration("tcp", targetLocation, durationMs)
	s.mu.Unlock()

	s.prom.recordTCP(labels, value)
	s.prom.recordDuration("tcp", targetLocation, durationMs)
}

// RecordHTTP stores one HTTP endpoint probe's outcome.
func (s *Store) RecordHTTP(targetLocation, targetInstance, targetIP, endpoint string, success bool, durationMs float64) {
	key := ProbeKey{TargetInstance: targetInstance, ProbeType: "http", Endpoint: endpoint}
	labels := map[string]string{
		"source_location": s.sourceLocation,
		"source_instance": s.sourceInstance,
		"target_location": targetLocation,
		"target_instance": targetInstance,
		"target_ip":       targetIP,
		"endpoint":        endpoint,
	}
	value := boolToFloat(success)

	s.mu.Lock()
	s.http[key] = httpEntry{labels: labels, value: value, durationMs: durationMs, at: time.Now()}
	s.addDuration("http", targetLocation, durationMs)
	s.mu.Unlock()

	s.prom.recordHTTP(labels, value)
	s.prom.recordDuration("http", targetLocation, durationMs)
}

// RecordBandwidth stores a bandwidth probe's throughput in Mbps.
func (s *Store) RecordBandwidth(targetLocation, targetInstance, targetIP string, mbps float64) {
	key := ProbeKey{TargetInstance: targetInstance, ProbeType: "bandwidth"}
	labels := map[string]string{
		"source_location": s.sourceLocation,
		"target_location": targetLocation,
		"target_ip":       targetIP,
	}

	s.mu.Lock()
	s.bandwidth[key] = bandwidthEntry{labels: labels, mbps: mbps, at: time.Now()}
	s.mu.Unlock()

	s.prom.recordBandwidth(labels, mbps)
}

// RecordTraceroute stores a traceroute result.
func (s *Store) RecordTraceroute(targetLocation, targetInstance string, totalHops int, maxHopLatencyMs float64) {
	key := ProbeKey{TargetInstance: targetInstance, ProbeType: "traceroute"}
	labels := map[string]string{
		"source_location": s.sourceLocation,
		"target_location": targetLocation,
	}

	s.mu.Lock()
	s.traceroute[key] = tracerouteEntry{
		labels: labels, totalHops: totalHops, maxHopLatencyMs: maxHopLatencyMs, at: time.Now(),
	}
	s.mu.Unlock()

	s.prom.recordTraceroute(labels, totalHops, maxHopLatencyMs)
}

// DropTarget removes every cached probe result for a peer that has
// disappeared from the local peer cache (spec.md §4.2's eviction rule).
func (s *Store) DropTarget(targetInstance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.tcp {
		if k.TargetInstance == targetInstance {
			delete(s.tcp, k)
		}
	}
	for k := range s.http {
		if k.TargetInstance == targetInstance {
			delete(s.http, k)
		}
	}
	for k := range s.bandwidth {
		if k.TargetInstance == targetInstance {
			delete(s.bandwidth, k)
		}
	}
	for k := range s.traceroute {
		if k.TargetInstance == targetInstance {
			delete(s.traceroute, k)
		}
	}
}

func (s *Store) addDuration(checkType, targetLocation string, durationMs float64) {
	key := DurationKey{CheckType: checkType, TargetLocation: targetLocation}
	agg, ok := s.durations[key]
	if !ok {
		agg = &durationAgg{buckets: make([]int, len(DurationBucketsSeconds))}
		s.durations[key] = agg
	}
	agg.count++
	agg.sumMs += durationMs
	seconds := durationMs / 1000
	for i, bound := range DurationBucketsSeconds {
		if seconds <= bound {
			agg.buckets[i]++
			break
		}
	}
}

// Snapshot copies out every recorded probe result into the flat,
// JSON-able wire shape.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		ConnectivityTCP:  make(map[string]Sample, len(s.tcp)),
		ConnectivityHTTP: make(map[string]Sample, len(s.http)),
		BandwidthTests:   make(map[string]Sample, len(s.bandwidth)),
		TracerouteTests:  make(map[string]TracerouteSample, len(s.traceroute)),
		CheckDurations:   make(map[string]DurationAggregate, len(s.durations)),
		General: GeneralSnapshot{
			UptimeS: int64(time.Since(s.startedAt).Seconds()),
			Version: s.version,
		},
	}

	for k, e := range s.tcp {
		out.ConnectivityTCP[k.String()] = Sample{
			Labels: e.labels, Value: e.value, DurationMS: &e.durationMs, Timestamp: e.at.Unix(),
		}
	}
	for k, e := range s.http {
		out.ConnectivityHTTP[k.String()] = Sample{
			Labels: e.labels, Value: e.value, DurationMS: &e.durationMs, Timestamp: e.at.Unix(),
		}
	}
	for k, e := range s.bandwidth {
		out.BandwidthTests[k.String()] = Sample{Labels: e.labels, Value: e.mbps, Timestamp: e.at.Unix()}
	}
	for k, e := range s.traceroute {
		out.TracerouteTests[k.String()] = TracerouteSample{
			Labels: e.labels, TotalHops: e.totalHops, MaxHopLatencyMs: e.maxHopLatencyMs, Timestamp: e.at.Unix(),
		}
	}
	for k, agg := range s.durations {
		buckets := make(map[string]int, len(agg.buckets))
		for i, bound := range DurationBucketsSeconds {
			buckets[strconv.FormatFloat(bound, 'f', -1, 64)] = agg.buckets[i]
		}
		avg := 0.0
		if agg.count > 0 {
			avg = agg.sumMs / float64(agg.count)
		}
		out.CheckDurations[k.String()] = DurationAggregate{
			Count: agg.count, SumMs: agg.sumMs, AvgMs: avg, PBucketCounts: buckets,
		}
	}

	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
