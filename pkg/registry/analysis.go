package registry

import (
	"strconv"
	"sync"
	"time"

	"github.com/netring-io/netring/pkg/config"
)

// LocationStatus is one configured (or unexpected) location's
// expected-vs-actual standing.
type LocationStatus string

const (
	LocationHealthy        LocationStatus = "healthy"
	LocationMissingMembers LocationStatus = "missing_members"
	LocationExtraMembers   LocationStatus = "extra_members"
	LocationUnexpected     LocationStatus = "unexpected_location"
)

// LocationAnalysis is one location's row in the expected-members report.
type LocationAnalysis struct {
	Location      string         `json:"location"`
	ActualCount   int            `json:"actual_count"`
	ExpectedCount int            `json:"expected_count"`
	MissingCount  int            `json:"missing_count"`
	Criticality   string         `json:"criticality,omitempty"`
	Status        LocationStatus `json:"status"`
}

// AlertLevel is an analysis alert's severity.
type AlertLevel string

const (
	AlertError   AlertLevel = "error"
	AlertWarning AlertLevel = "warning"
)

// Alert is one analysis-triggered alert line.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
}

// Summary aggregates the analysis for dashboard consumption.
type Summary struct {
	TotalMissingMembers int `json:"total_missing_members"`
	UnexpectedLocations int `json:"unexpected_locations"`
}

// Analysis is the full expected-location report returned by
// /members_with_analysis.
type Analysis struct {
	Enabled   bool               `json:"enabled"`
	Timestamp int64              `json:"timestamp"`
	Locations []LocationAnalysis `json:"locations"`
	Alerts    []Alert            `json:"alerts"`
	Summary   Summary            `json:"summary"`
}

// locationTracker records, per location, the moment it first dropped
// below its expected count — spec.md §4.1's in-memory "first-below"
// grace tracking. It resets once a location is back at or above
// expectation.
type locationTracker struct {
	mu        sync.Mutex
	firstBelow map[string]time.Time
}

func newLocationTracker() *locationTracker {
	return &locationTracker{firstBelow: make(map[string]time.Time)}
}

// belowSince records (or clears) a location's first-below timestamp
// for this tick and returns how long it has been continuously below,
// or zero if it is currently at or above expectation.
func (t *locationTracker) belowSince(location string, below bool, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !below {
		delete(t.firstBelow, location)
		return 0
	}
	first, ok := t.firstBelow[location]
	if !ok {
		t.firstBelow[location] = now
		return 0
	}
	return now.Sub(first)
}

// Analyze computes spec.md §4.1's expected-location analysis for the
// given active members against an expected-locations config.
func (d *Directory) Analyze(members []Member, expected config.ExpectedLocationsFile, now time.Time) Analysis {
	counts := make(map[string]int)
	for _, m := range members {
		if m.Status == StatusActive {
			counts[m.Location]++
		}
	}

	var (
		locations           []LocationAnalysis
		alerts              []Alert
		totalMissing        int
		unexpectedLocations int
		criticalMissing     int
	)

	for name, spec := range expected.Locations {
		actual := counts[name]
		delete(counts, name)

		missing := spec.ExpectedCount - actual
		if missing < 0 {
			missing = 0
		}

		below := actual < spec.ExpectedCount
		belowDuration := d.analysis.belowSince(name, below, now)

		status := LocationHealthy
		switch {
		case below && belowDuration >= time.Duration(spec.GracePeriodS)*time.Second:
			status = LocationMissingMembers
		case actual > spec.ExpectedCount:
			status = LocationExtraMembers
		}

		if status == LocationMissingMembers {
			totalMissing += missing
			level := AlertWarning
			if spec.Criticality == "high" {
				level = AlertError
				criticalMissing++
			}
			alerts = append(alerts, Alert{
				Level:   level,
				Message: locationMissingMessage(name, actual, spec.ExpectedCount),
			})
		}

		locations = append(locations, LocationAnalysis{
			Location:      name,
			ActualCount:   actual,
			ExpectedCount: spec.ExpectedCount,
			MissingCount:  missing,
			Criticality:   spec.Criticality,
			Status:        status,
		})
	}

	// Anything left in counts belongs to a location not in the config.
	for name, actual := range counts {
		unexpectedLocations++
		locations = append(locations, LocationAnalysis{
			Location:    name,
			ActualCount: actual,
			Status:      LocationUnexpected,
		})
		alerts = append(alerts, Alert{
			Level:   AlertWarning,
			Message: "unexpected location " + name + " has members but is not configured",
		})
	}

	// Aggregate alert: a critical-missing breach takes precedence over a
	// plain total-missing breach, mirroring the original registry's
	// "critical first, else total" alerting order.
	switch {
	case expected.Settings.CriticalMissingThreshold > 0 && criticalMissing >= expected.Settings.CriticalMissingThreshold:
		alerts = append(alerts, Alert{
			Level:   AlertError,
			Message: "critical: " + strconv.Itoa(criticalMissing) + " high-priority location(s) missing members",
		})
	case expected.Settings.TotalMissingThreshold > 0 && totalMissing >= expected.Settings.TotalMissingThreshold:
		alerts = append(alerts, Alert{
			Level:   AlertWarning,
			Message: "total missing members meets or exceeds configured threshold",
		})
	}

	return Analysis{
		Enabled:   true,
		Timestamp: now.Unix(),
		Locations: locations,
		Alerts:    alerts,
		Summary: Summary{
			TotalMissingMembers: totalMissing,
			UnexpectedLocations: unexpectedLocations,
		},
	}
}

func locationMissingMessage(location string, actual, expected int) string {
	if actual == 0 {
		return location + " has no members, expected " + strconv.Itoa(expected)
	}
	return location + " is missing members: " + strconv.Itoa(actual) + "/" + strconv.Itoa(expected)
}
