// Package member implements the member role spec.md §4.2 describes:
// presence maintenance with the registry, a local peer cache, the four
// probe pipelines run as six supervised background tasks, and the
// member's own HTTP surface.
package member

import "sync"

// Peer is one other member the cache has learned about via /members.
type Peer struct {
	InstanceID string
	Location   string
	IP         string
	Port       int
}

// Cache holds the locally known peer set. Per spec.md §4.2, each
// successful poll wholesale-replaces the set (filtered to active,
// non-self records); a peer absent from two successive refreshes is
// evicted and its cached probe results dropped.
type Cache struct {
	mu            sync.Mutex
	peers         map[string]Peer
	missingStreak map[string]int

	onEvict func(instanceID string)
}

// NewCache builds an empty Cache. onEvict, if non-nil, is called for
// every peer dropped after two successive missing refreshes — the
// member wires this to its metrics.Store.DropTarget.
func NewCache(onEvict func(instanceID string)) *Cache {
	return &Cache{
		peers:         make(map[string]Peer),
		missingStreak: make(map[string]int),
		onEvict:       onEvict,
	}
}

// Replace updates the cache from a fresh /members response, already
// filtered to active, non-self records by the caller.
func (c *Cache) Replace(fresh []Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	freshSet := make(map[string]Peer, len(fresh))
	for _, p := range fresh {
		freshSet[p.InstanceID] = p
	}

	for id := range c.peers {
		if _, present := freshSet[id]; present {
			continue
		}
		c.missingStreak[id]++
		if c.missingStreak[id] >= 2 {
			delete(c.peers, id)
			delete(c.missingStreak, id)
			if c.onEvict != nil {
				c.onEvict(id)
			}
		}
	}

	for id, p := range freshSet {
		c.peers[id] = p
		delete(c.missingStreak, id)
	}
}

// Peers returns a snapshot of the current peer set.
func (c *Cache) Peers() []Peer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Peer, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	return out
}

// Len reports the current peer count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers)
}
