// Package metrics implements the member-side probe-result store spec.md
// §4.2/§9 describes: per-probe-kind maps keyed by a composite
// ProbeKey, a Prometheus exposition of the same data, and the flat JSON
// snapshot shape pushed to the registry and returned by its /metrics
// endpoint.
package metrics

import "fmt"

// ProbeKey identifies one probe result: a target member, the kind of
// probe, and (for HTTP probes) which endpoint was hit.
type ProbeKey struct {
	TargetInstance string
	ProbeType      string
	Endpoint       string
}

// String renders a ProbeKey as the flat composite key the JSON wire
// format and the self-maintained key index in pkg/store use.
func (k ProbeKey) String() string {
	if k.Endpoint == "" {
		return fmt.Sprintf("%s|%s", k.TargetInstance, k.ProbeType)
	}
	return fmt.Sprintf("%s|%s|%s", k.TargetInstance, k.ProbeType, k.Endpoint)
}

// DurationKey identifies one (probe type, target location) latency
// aggregate.
type DurationKey struct {
	CheckType      string
	TargetLocation string
}

func (k DurationKey) String() string {
	return fmt.Sprintf("%s|%s", k.CheckType, k.TargetLocation)
}
