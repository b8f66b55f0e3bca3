package member

import "testing"

func TestDetectIPHonorsConfiguredOverride(t *testing.T) {
	ip, err := DetectIP("203.0.113.5")
	if err != nil {
		t.Fatalf("DetectIP: %v", err)
	}
	if ip != "203.0.113.5" {
		t.Fatalf("ip = %q, want configured override", ip)
	}
}

func TestDetectIPNeverReturnsEmptyWithoutOverride(t *testing.T) {
	ip, err := DetectIP("")
	if err != nil {
		t.Fatalf("DetectIP: %v", err)
	}
	if ip == "" {
		t.Fatalf("DetectIP returned empty string, want a fallback address")
	}
}
