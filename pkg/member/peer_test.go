package member

import "testing"

func TestCacheReplaceAddsNewPeers(t *testing.T) {
	c := NewCache(nil)
	c.Replace([]Peer{{InstanceID: "a", Location: "us-east", IP: "10.0.0.1", Port: 9000}})

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheReplaceEvictsAfterTwoMissingRefreshes(t *testing.T) {
	var evicted []string
	c := NewCache(func(id string) { evicted = append(evicted, id) })

	c.Replace([]Peer{{InstanceID: "a"}, {InstanceID: "b"}})
	if c.Len() != 2 {
		t.Fatalf("Len() after first replace = %d, want 2", c.Len())
	}

	// First missing refresh for "b": not yet evicted.
	c.Replace([]Peer{{InstanceID: "a"}})
	if c.Len() != 2 {
		t.Fatalf("Len() after one missing refresh = %d, want 2 (grace refresh)", c.Len())
	}
	if len(evicted) != 0 {
		t.Fatalf("evicted after one missing refresh = %v, want none", evicted)
	}

	// Second consecutive missing refresh for "b": evicted.
	c.Replace([]Peer{{InstanceID: "a"}})
	if c.Len() != 1 {
		t.Fatalf("Len() after two missing refreshes = %d, want 1", c.Len())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
}

func TestCacheReplaceResetsMissingStreakOnReappearance(t *testing.T) {
	var evicted []string
	c := NewCache(func(id string) { evicted = append(evicted, id) })

	c.Replace([]Peer{{InstanceID: "a"}})
	c.Replace([]Peer{}) // one miss
	c.Replace([]Peer{{InstanceID: "a"}}) // reappears, streak resets
	c.Replace([]Peer{})                  // one miss again, should not evict yet

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (streak should have reset on reappearance)", c.Len())
	}
	if len(evicted) != 0 {
		t.Fatalf("evicted = %v, want none", evicted)
	}
}

func TestCachePeersSnapshotIsIndependent(t *testing.T) {
	c := NewCache(nil)
	c.Replace([]Peer{{InstanceID: "a"}})

	peers := c.Peers()
	c.Replace([]Peer{{InstanceID: "a"}, {InstanceID: "b"}})

	if len(peers) != 1 {
		t.Fatalf("earlier snapshot mutated: len = %d, want 1", len(peers))
	}
}
