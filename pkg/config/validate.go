package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Path    string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors aggregates every ValidationError found by a single
// Validate call.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (es ValidationErrors) asError() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// Validate checks a Registry config for internal consistency, returning
// every problem found rather than stopping at the first.
func (r Registry) Validate() error {
	var errs ValidationErrors

	if r.Store.Host == "" {
		errs = append(errs, ValidationError{Path: "store.host", Message: "must not be empty"})
	}
	if r.Store.Port < 1 || r.Store.Port > 65535 {
		errs = append(errs, ValidationError{Path: "store.port", Message: "must be in [1, 65535]"})
	}
	if r.Server.Port < 1 || r.Server.Port > 65535 {
		errs = append(errs, ValidationError{Path: "server.port", Message: "must be in [1, 65535]"})
	}
	if r.MemberTTLS <= 0 {
		errs = append(errs, ValidationError{Path: "member_ttl", Message: "must be positive"})
	}
	if r.CleanupInterval <= 0 {
		errs = append(errs, ValidationError{Path: "cleanup_interval", Message: "must be positive"})
	}
	if r.DeregisteredGrace <= 0 {
		errs = append(errs, ValidationError{Path: "deregistered_grace", Message: "must be positive"})
	}
	if r.ExpectedMembers.EnableMissingDetection && r.ExpectedMembers.ConfigFile == "" {
		errs = append(errs, ValidationError{
			Path:    "expected_members.config_file",
			Message: "required when enable_missing_detection is true",
			Hint:    "set expected_members.config_file to a locations YAML file",
		})
	}

	return errs.asError()
}

// Validate checks a Member config for internal consistency.
func (m Member) Validate() error {
	var errs ValidationErrors

	if m.Location == "" {
		errs = append(errs, ValidationError{Path: "location", Message: "must not be empty"})
	}
	if m.Registry.URL == "" {
		errs = append(errs, ValidationError{Path: "registry.url", Message: "must not be empty"})
	}
	if m.Server.Port < 1 || m.Server.Port > 65535 {
		errs = append(errs, ValidationError{Path: "server.port", Message: "must be in [1, 65535]"})
	}
	if m.HostIP != "" && net.ParseIP(m.HostIP) == nil {
		errs = append(errs, ValidationError{Path: "host_ip", Message: "not a valid IP address"})
	}
	if m.Intervals.Poll <= 0 {
		errs = append(errs, ValidationError{Path: "intervals.poll", Message: "must be positive"})
	}
	if m.Intervals.Check <= 0 {
		errs = append(errs, ValidationError{Path: "intervals.check", Message: "must be positive"})
	}
	if m.Intervals.Heartbeat <= 0 {
		errs = append(errs, ValidationError{Path: "intervals.heartbeat", Message: "must be positive"})
	}
	if m.Checks.BandwidthTestSizeMB <= 0 {
		errs = append(errs, ValidationError{Path: "checks.bandwidth_test_size_mb", Message: "must be positive"})
	}
	if len(m.Checks.HTTPEndpoints) == 0 {
		errs = append(errs, ValidationError{
			Path:    "checks.http_endpoints",
			Message: "must list at least one endpoint",
			Hint:    "defaults to [\"/health\", \"/metrics\"]",
		})
	}

	return errs.asError()
}

// Validate checks that every configured location has a recognized
// criticality and a sane grace period.
func (f ExpectedLocationsFile) Validate() error {
	var errs ValidationErrors

	for name, loc := range f.Locations {
		path := fmt.Sprintf("locations.%s", name)
		switch loc.Criticality {
		case "high", "medium", "low":
		default:
			errs = append(errs, ValidationError{
				Path:    path + ".criticality",
				Message: fmt.Sprintf("unrecognized criticality %q", loc.Criticality),
				Hint:    "must be one of high, medium, low",
			})
		}
		if loc.ExpectedCount < 0 {
			errs = append(errs, ValidationError{Path: path + ".expected_count", Message: "must be >= 0"})
		}
		if loc.GracePeriodS < 0 {
			errs = append(errs, ValidationError{Path: path + ".grace_period_s", Message: "must be >= 0"})
		}
	}

	return errs.asError()
}
