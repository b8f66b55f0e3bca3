package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadRegistryDefaults(t *testing.T) {
	cfg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry(\"\"): %v", err)
	}
	if cfg.MemberTTLS != 300 {
		t.Fatalf("MemberTTLS = %d, want 300", cfg.MemberTTLS)
	}
	if cfg.Store.Host != "localhost" {
		t.Fatalf("Store.Host = %q, want localhost", cfg.Store.Host)
	}
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := writeTempFile(t, "store:\n  host: store.internal\n  port: 4000\nmember_ttl: 120\n")
	cfg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if cfg.Store.Host != "store.internal" || cfg.Store.Port != 4000 {
		t.Fatalf("Store = %+v, want host=store.internal port=4000", cfg.Store)
	}
	if cfg.MemberTTLS != 120 {
		t.Fatalf("MemberTTLS = %d, want 120", cfg.MemberTTLS)
	}
	if cfg.CleanupInterval != 60 {
		t.Fatalf("CleanupInterval = %d, want default 60 to survive a partial file", cfg.CleanupInterval)
	}
}

func TestLoadRegistryUnknownFieldRejected(t *testing.T) {
	path := writeTempFile(t, "not_a_real_field: true\n")
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("LoadRegistry with unknown field: got nil error, want a decode error")
	}
}

func TestRegistryEnvOverride(t *testing.T) {
	t.Setenv("NETRING_MEMBER_TTL", "42")
	cfg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if cfg.MemberTTLS != 42 {
		t.Fatalf("MemberTTLS = %d, want 42 from env override", cfg.MemberTTLS)
	}
}

func TestRegistryValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultRegistry()
	cfg.Server.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("Validate: got nil error, want a validation error for out-of-range port")
	}
}

func TestRegistryValidateRequiresConfigFileWhenEnabled(t *testing.T) {
	cfg := DefaultRegistry()
	cfg.ExpectedMembers.EnableMissingDetection = true
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("Validate: got nil error, want error for missing expected_members.config_file")
	}
}

func TestLoadMemberDefaults(t *testing.T) {
	path := writeTempFile(t, "location: us1\nregistry:\n  url: http://registry:8000\n")
	cfg, err := LoadMember(path)
	if err != nil {
		t.Fatalf("LoadMember: %v", err)
	}
	if cfg.Location != "us1" {
		t.Fatalf("Location = %q, want us1", cfg.Location)
	}
	if len(cfg.Checks.HTTPEndpoints) != 2 {
		t.Fatalf("HTTPEndpoints = %v, want 2 defaults to survive a partial file", cfg.Checks.HTTPEndpoints)
	}
}

func TestMemberValidateRequiresLocation(t *testing.T) {
	cfg := DefaultMember()
	cfg.Registry.URL = "http://registry:8000"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate: got nil error, want error for empty location")
	}
}

func TestMemberValidateRejectsBadHostIP(t *testing.T) {
	cfg := DefaultMember()
	cfg.Location = "us1"
	cfg.Registry.URL = "http://registry:8000"
	cfg.HostIP = "not-an-ip"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate: got nil error, want error for invalid host_ip")
	}
}

func TestExpectedLocationsFileValidation(t *testing.T) {
	f := ExpectedLocationsFile{
		Locations: map[string]ExpectedLocation{
			"us1": {ExpectedCount: 1, Criticality: "bogus", GracePeriodS: 30},
		},
	}
	if err := f.Validate(); err == nil {
		t.Fatalf("Validate: got nil error, want error for unrecognized criticality")
	}
}
