package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, ok, err := s.Get(ctx, "netring:member:a"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	if err := s.Set(ctx, "netring:member:a", []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, ok, err := s.Get(ctx, "netring:member:a")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v, want ok=true err=nil", ok, err)
	}
	if string(val) != "payload" {
		t.Fatalf("Get value = %q, want %q", val, "payload")
	}

	if err := s.Delete(ctx, "netring:member:a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "netring:member:a"); ok {
		t.Fatalf("Get after Delete: ok=true, want false")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if err := s.Set(ctx, "netring:member:a", []byte("x"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "netring:member:a"); ok {
		t.Fatalf("Get after TTL expiry: ok=true, want false")
	}
}

func TestMemoryScanPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	entries := map[string][]byte{
		"netring:member:a":  []byte("1"),
		"netring:member:b":  []byte("2"),
		"netring:metrics:a": []byte("3"),
	}
	if err := s.SetMany(ctx, entries, 0); err != nil {
		t.Fatalf("SetMany: %v", err)
	}

	keys, err := s.Scan(ctx, "netring:member:")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Scan returned %d keys, want 2: %v", len(keys), keys)
	}
}

func TestMemoryDeleteMissingKeyIsNotError(t *testing.T) {
	s := NewMemory()
	if err := s.Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("Delete on missing key: %v, want nil", err)
	}
}

var _ Store = (*Memory)(nil)
var _ Store = (*Olric)(nil)
