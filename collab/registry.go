package collab

import (
	"sort"
	"sync"
	"time"
)

type (
	// RosterEntry is one currently connected member of a canvas.
	RosterEntry struct {
		Identity
		JoinedAt time.Time `json:"joinedAt"`
	}

	member struct {
		entry RosterEntry
		conn  *Conn
	}

	// roster holds the live members of one canvas. Each roster carries its
	// own lock so traffic on one canvas never serializes against another.
	// Lock order is registry before roster, never the reverse.
	roster struct {
		mu      sync.RWMutex
		members map[string]*member // keyed by user id
	}

	// Registry maps canvas id to its live roster. It is the source of truth
	// for "who is here now"; the durable canvas itself lives in the store.
	Registry struct {
		mu      sync.RWMutex
		rosters map[string]*roster
	}
)

func NewRegistry() *Registry {
	return &Registry{rosters: make(map[string]*roster)}
}

func (r *Registry) get(roomID string) (*roster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ro, ok := r.rosters[roomID]
	return ro, ok
}

// Join inserts the connection's identity into the canvas roster and returns
// the new entry along with the resulting roster. A second connection by the
// same identity replaces the earlier entry rather than duplicating it. The
// registry lock is held across the insert so the roster cannot be dropped
// out from under it by a concurrent Leave.
func (r *Registry) Join(roomID string, c *Conn) (RosterEntry, []RosterEntry) {
	m := &member{
		entry: RosterEntry{Identity: c.identity, JoinedAt: time.Now()},
		conn:  c,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ro, ok := r.rosters[roomID]
	if !ok {
		ro = &roster{members: make(map[string]*member)}
		r.rosters[roomID] = ro
	}

	ro.mu.Lock()
	ro.members[c.identity.ID] = m
	entries := ro.snapshot()
	ro.mu.Unlock()
	return m.entry, entries
}

// Leave removes the connection from the roster. It is idempotent, and a
// connection whose entry was replaced by a newer connection of the same
// identity does not evict the replacement. The removed entry is returned
// so callers can announce exactly one departure. A roster left with no
// members is dropped from the registry.
func (r *Registry) Leave(roomID string, c *Conn) (RosterEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ro, ok := r.rosters[roomID]
	if !ok {
		return RosterEntry{}, false
	}

	ro.mu.Lock()
	defer ro.mu.Unlock()
	m, ok := ro.members[c.identity.ID]
	if !ok || m.conn != c {
		return RosterEntry{}, false
	}
	delete(ro.members, c.identity.ID)
	if len(ro.members) == 0 {
		delete(r.rosters, roomID)
	}
	return m.entry, true
}

// ActiveUsers returns the current roster, ordered by join time. A canvas
// with no members yields an empty slice, never an error.
func (r *Registry) ActiveUsers(roomID string) []RosterEntry {
	ro, ok := r.get(roomID)
	if !ok {
		return []RosterEntry{}
	}

	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.snapshot()
}

// Peers returns the outbound sinks of every member except the given user.
func (r *Registry) Peers(roomID, exceptUserID string) []Peer {
	ro, ok := r.get(roomID)
	if !ok {
		return nil
	}

	ro.mu.RLock()
	defer ro.mu.RUnlock()
	peers := make([]Peer, 0, len(ro.members))
	for id, m := range ro.members {
		if id == exceptUserID {
			continue
		}
		peers = append(peers, m.conn.peer)
	}
	return peers
}

// snapshot must be called with the roster lock held.
func (ro *roster) snapshot() []RosterEntry {
	entries := make([]RosterEntry, 0, len(ro.members))
	for _, m := range ro.members {
		entries = append(entries, m.entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	return entries
}
