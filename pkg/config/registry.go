package config

import "time"

// Registry is the registry process's full configuration, decoded from
// YAML and then overridden by environment variables (see env.go).
type Registry struct {
	Store           StoreConfig           `yaml:"store"`
	Server          ServerConfig          `yaml:"server"`
	MemberTTLS      int                   `yaml:"member_ttl"`
	CleanupInterval int                   `yaml:"cleanup_interval"`
	DeregisteredGrace int                 `yaml:"deregistered_grace"`
	ExpectedMembers ExpectedMembersConfig `yaml:"expected_members"`
	AdminToken      string                `yaml:"admin_token"`
}

// StoreConfig points at the olric cluster backing the member directory.
type StoreConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// ServerConfig is the local HTTP listener address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ExpectedMembersConfig turns on expected-location analysis and points
// at the file describing per-location expectations (spec.md §3's
// "Expected-location spec").
type ExpectedMembersConfig struct {
	EnableMissingDetection bool   `yaml:"enable_missing_detection"`
	ConfigFile             string `yaml:"config_file"`
	MissingCheckInterval   int    `yaml:"missing_check_interval"`
}

// ExpectedLocationsFile is the schema of the file ExpectedMembersConfig
// ConfigFile points at.
type ExpectedLocationsFile struct {
	Locations map[string]ExpectedLocation `yaml:"locations"`
	Settings  ExpectedLocationsSettings   `yaml:"settings"`
}

// ExpectedLocation describes one entry in an ExpectedLocationsFile.
type ExpectedLocation struct {
	ExpectedCount int    `yaml:"expected_count"`
	Criticality   string `yaml:"criticality"`
	GracePeriodS  int    `yaml:"grace_period_s"`
	Description   string `yaml:"description"`
}

// ExpectedLocationsSettings holds the alerting thresholds shared across
// all locations.
type ExpectedLocationsSettings struct {
	CriticalMissingThreshold int `yaml:"critical_missing_threshold"`
	TotalMissingThreshold    int `yaml:"total_missing_threshold"`
}

// DefaultRegistry returns a Registry populated with spec.md's defaults,
// to be overlaid by file and environment configuration.
func DefaultRegistry() Registry {
	return Registry{
		Store:  StoreConfig{Host: "localhost", Port: 3320, DB: 0},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		MemberTTLS:        300,
		CleanupInterval:   60,
		DeregisteredGrace: 3600,
		ExpectedMembers: ExpectedMembersConfig{
			EnableMissingDetection: false,
			MissingCheckInterval:   60,
		},
	}
}

// MemberTTL returns MemberTTLS as a time.Duration.
func (r Registry) MemberTTL() time.Duration { return time.Duration(r.MemberTTLS) * time.Second }

// CleanupIntervalDuration returns CleanupInterval as a time.Duration.
func (r Registry) CleanupIntervalDuration() time.Duration {
	return time.Duration(r.CleanupInterval) * time.Second
}

// DeregisteredGraceDuration returns DeregisteredGrace as a time.Duration.
func (r Registry) DeregisteredGraceDuration() time.Duration {
	return time.Duration(r.DeregisteredGrace) * time.Second
}
