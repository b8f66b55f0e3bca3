package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides overwrites any field for which the corresponding
// NETRING_ environment variable is set, per spec.md §6.4's "environment
// variables override file" rule.
func envString(name string, cur *string) {
	if v, ok := os.LookupEnv("NETRING_" + name); ok {
		*cur = v
	}
}

func envInt(name string, cur *int) {
	if v, ok := os.LookupEnv("NETRING_" + name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*cur = n
		}
	}
}

func envBool(name string, cur *bool) {
	if v, ok := os.LookupEnv("NETRING_" + name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*cur = b
		}
	}
}

func envStringSlice(name string, cur *[]string) {
	if v, ok := os.LookupEnv("NETRING_" + name); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		*cur = out
	}
}

// ApplyEnv overrides r's fields from NETRING_STORE_HOST-style
// environment variables.
func (r *Registry) ApplyEnv() {
	envString("STORE_HOST", &r.Store.Host)
	envInt("STORE_PORT", &r.Store.Port)
	envInt("STORE_DB", &r.Store.DB)
	envString("STORE_PASSWORD", &r.Store.Password)
	envString("SERVER_HOST", &r.Server.Host)
	envInt("SERVER_PORT", &r.Server.Port)
	envInt("MEMBER_TTL", &r.MemberTTLS)
	envInt("CLEANUP_INTERVAL", &r.CleanupInterval)
	envInt("DEREGISTERED_GRACE", &r.DeregisteredGrace)
	envBool("EXPECTED_MEMBERS_ENABLE_MISSING_DETECTION", &r.ExpectedMembers.EnableMissingDetection)
	envString("EXPECTED_MEMBERS_CONFIG_FILE", &r.ExpectedMembers.ConfigFile)
	envInt("EXPECTED_MEMBERS_MISSING_CHECK_INTERVAL", &r.ExpectedMembers.MissingCheckInterval)
	envString("ADMIN_TOKEN", &r.AdminToken)
}

// ApplyEnv overrides m's fields from NETRING_LOCATION-style
// environment variables.
func (m *Member) ApplyEnv() {
	envString("LOCATION", &m.Location)
	envString("INSTANCE_ID", &m.InstanceID)
	envString("REGISTRY_URL", &m.Registry.URL)
	envInt("INTERVALS_POLL", &m.Intervals.Poll)
	envInt("INTERVALS_CHECK", &m.Intervals.Check)
	envInt("INTERVALS_HEARTBEAT", &m.Intervals.Heartbeat)
	envInt("INTERVALS_BANDWIDTH_TEST", &m.Intervals.BandwidthTest)
	envInt("INTERVALS_TRACEROUTE", &m.Intervals.Traceroute)
	envString("SERVER_HOST", &m.Server.Host)
	envInt("SERVER_PORT", &m.Server.Port)
	envInt("CHECKS_TCP_TIMEOUT", &m.Checks.TCPTimeoutS)
	envInt("CHECKS_HTTP_TIMEOUT", &m.Checks.HTTPTimeoutS)
	envStringSlice("CHECKS_HTTP_ENDPOINTS", &m.Checks.HTTPEndpoints)
	envInt("CHECKS_BANDWIDTH_TEST_SIZE_MB", &m.Checks.BandwidthTestSizeMB)
	envInt("CHECKS_TRACEROUTE_TIMEOUT", &m.Checks.TracerouteTimeoutS)
	envString("HOST_IP", &m.HostIP)
}
