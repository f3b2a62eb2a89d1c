package livesync

import (
	"sort"
	"sync"
)

// PresenceCounter tracks the ephemeral membership of one room. Membership
// is entirely derived from join/leave/sync broadcasts; there is no separate
// counter to drift out of step with the set.
type PresenceCounter struct {
	mu      sync.Mutex
	members map[string]struct{}
}

// NewPresenceCounter creates an empty presence counter
func NewPresenceCounter() *PresenceCounter {
	return &PresenceCounter{
		members: make(map[string]struct{}),
	}
}

// Sync replaces the full membership set. Sync messages are authoritative;
// the push channel emits one on (re)connect and periodically.
func (p *PresenceCounter) Sync(keys []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members = make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key != "" {
			p.members[key] = struct{}{}
		}
	}
}

// Join adds a member. Joining an already-present key is a no-op.
func (p *PresenceCounter) Join(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[key] = struct{}{}
}

// Leave removes a member. Leaving an absent key is a no-op.
func (p *PresenceCounter) Leave(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, key)
}

// Count returns the current member count
func (p *PresenceCounter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}

// Members returns the current member keys, sorted for deterministic output
func (p *PresenceCounter) Members() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.members))
	for key := range p.members {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clear empties the membership set, used on room leave
func (p *PresenceCounter) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members = make(map[string]struct{})
}
