package config

import (
	"fmt"
	"os"
)

// LoadRegistry reads path as strict YAML over DefaultRegistry, applies
// NETRING_ environment overrides, and validates the result.
func LoadRegistry(path string) (Registry, error) {
	cfg := DefaultRegistry()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Registry{}, fmt.Errorf("open registry config %q: %w", path, err)
		}
		defer f.Close()
		if err := DecodeStrict(f, &cfg); err != nil {
			return Registry{}, fmt.Errorf("registry config %q: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Registry{}, err
	}
	return cfg, nil
}

// LoadMember reads path as strict YAML over DefaultMember, applies
// NETRING_ environment overrides, and validates the result.
func LoadMember(path string) (Member, error) {
	cfg := DefaultMember()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Member{}, fmt.Errorf("open member config %q: %w", path, err)
		}
		defer f.Close()
		if err := DecodeStrict(f, &cfg); err != nil {
			return Member{}, fmt.Errorf("member config %q: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Member{}, err
	}
	return cfg, nil
}

// LoadExpectedLocations reads path as strict YAML into an
// ExpectedLocationsFile and validates it.
func LoadExpectedLocations(path string) (ExpectedLocationsFile, error) {
	var out ExpectedLocationsFile
	f, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open expected-locations config %q: %w", path, err)
	}
	defer f.Close()
	if err := DecodeStrict(f, &out); err != nil {
		return out, fmt.Errorf("expected-locations config %q: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}
