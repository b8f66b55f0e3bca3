package config

import "time"

// Member is the member process's full configuration, decoded from YAML
// and then overridden by environment variables (see env.go).
type Member struct {
	Location   string          `yaml:"location"`
	InstanceID string          `yaml:"instance_id"`
	Registry   RegistryClient  `yaml:"registry"`
	Intervals  IntervalsConfig `yaml:"intervals"`
	Server     ServerConfig    `yaml:"server"`
	Checks     ChecksConfig    `yaml:"checks"`
	HostIP     string          `yaml:"host_ip"`
}

// RegistryClient is the address of the registry a member talks to.
type RegistryClient struct {
	URL string `yaml:"url"`
}

// IntervalsConfig holds the six background tasks' periods, in seconds.
type IntervalsConfig struct {
	Poll           int `yaml:"poll"`
	Check          int `yaml:"check"`
	Heartbeat      int `yaml:"heartbeat"`
	BandwidthTest  int `yaml:"bandwidth_test"`
	Traceroute     int `yaml:"traceroute"`
}

// ChecksConfig holds probe-specific tuning.
type ChecksConfig struct {
	TCPTimeoutS         int      `yaml:"tcp_timeout"`
	HTTPTimeoutS        int      `yaml:"http_timeout"`
	HTTPEndpoints       []string `yaml:"http_endpoints"`
	BandwidthTestSizeMB int      `yaml:"bandwidth_test_size_mb"`
	TracerouteTimeoutS  int      `yaml:"traceroute_timeout"`
}

// DefaultMember returns a Member populated with spec.md's defaults, to
// be overlaid by file and environment configuration.
func DefaultMember() Member {
	return Member{
		Server: ServerConfig{Host: "0.0.0.0", Port: 9000},
		Intervals: IntervalsConfig{
			Poll:          30,
			Check:         60,
			Heartbeat:     45,
			BandwidthTest: 300,
			Traceroute:    300,
		},
		Checks: ChecksConfig{
			TCPTimeoutS:         5,
			HTTPTimeoutS:        10,
			HTTPEndpoints:       []string{"/health", "/metrics"},
			BandwidthTestSizeMB: 1,
			TracerouteTimeoutS:  60,
		},
	}
}

func (m Member) PollInterval() time.Duration {
	return time.Duration(m.Intervals.Poll) * time.Second
}
func (m Member) CheckInterval() time.Duration {
	return time.Duration(m.Intervals.Check) * time.Second
}
func (m Member) HeartbeatInterval() time.Duration {
	return time.Duration(m.Intervals.Heartbeat) * time.Second
}
func (m Member) BandwidthTestInterval() time.Duration {
	return time.Duration(m.Intervals.BandwidthTest) * time.Second
}
func (m Member) TracerouteInterval() time.Duration {
	return time.Duration(m.Intervals.Traceroute) * time.Second
}
func (m Member) TCPTimeout() time.Duration {
	return time.Duration(m.Checks.TCPTimeoutS) * time.Second
}
func (m Member) HTTPTimeout() time.Duration {
	return time.Duration(m.Checks.HTTPTimeoutS) * time.Second
}
func (m Member) TracerouteTimeout() time.Duration {
	return time.Duration(m.Checks.TracerouteTimeoutS) * time.Second
}
