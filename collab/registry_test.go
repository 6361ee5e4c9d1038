package collab

import (
	"fmt"
	"sync"
	"testing"
)

type nopPeer struct {
	id string
}

func (p *nopPeer) SessionID() string        { return p.id }
func (p *nopPeer) Send(event string, _ any) {}

func testConn(userID, name, session string) *Conn {
	return newConn(Identity{ID: userID, Name: name}, &nopPeer{id: session})
}

func TestJoinReturnsRoster(t *testing.T) {
	registry := NewRegistry()

	entry, roster := registry.Join("canvas-1", testConn("alice", "Alice", "s1"))
	if entry.ID != "alice" {
		t.Errorf("Expected entry for alice, got %s", entry.ID)
	}
	if entry.JoinedAt.IsZero() {
		t.Error("Expected JoinedAt to be set")
	}
	if len(roster) != 1 {
		t.Fatalf("Expected roster of 1, got %d", len(roster))
	}
	if roster[0].ID != "alice" || roster[0].Name != "Alice" {
		t.Errorf("Unexpected roster entry: %+v", roster[0])
	}
}

func TestActiveUsersEmptyForUnknownRoom(t *testing.T) {
	registry := NewRegistry()

	users := registry.ActiveUsers("nonexistent")
	if users == nil {
		t.Fatal("ActiveUsers() should return an empty slice, not nil")
	}
	if len(users) != 0 {
		t.Errorf("Expected 0 users, got %d", len(users))
	}
}

func TestJoinSameIdentityReplacesEntry(t *testing.T) {
	registry := NewRegistry()

	first := testConn("alice", "Alice", "s1")
	second := testConn("alice", "Alice", "s2")

	registry.Join("canvas-1", first)
	registry.Join("canvas-1", second)

	users := registry.ActiveUsers("canvas-1")
	if len(users) != 1 {
		t.Fatalf("Expected one roster entry after rejoin, got %d", len(users))
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	conn := testConn("alice", "Alice", "s1")

	registry.Join("canvas-1", conn)

	if _, removed := registry.Leave("canvas-1", conn); !removed {
		t.Error("First leave should remove the entry")
	}
	if _, removed := registry.Leave("canvas-1", conn); removed {
		t.Error("Second leave should be a no-op")
	}
	if _, removed := registry.Leave("unknown-canvas", conn); removed {
		t.Error("Leave for an unknown room should be a no-op")
	}
}

func TestStaleConnectionCannotEvictReplacement(t *testing.T) {
	registry := NewRegistry()

	stale := testConn("alice", "Alice", "s1")
	replacement := testConn("alice", "Alice", "s2")

	registry.Join("canvas-1", stale)
	registry.Join("canvas-1", replacement)

	// The replaced connection disconnects late; the new entry must survive.
	if _, removed := registry.Leave("canvas-1", stale); removed {
		t.Error("Stale connection should not remove the replacement's entry")
	}

	users := registry.ActiveUsers("canvas-1")
	if len(users) != 1 || users[0].ID != "alice" {
		t.Fatalf("Expected alice to remain in the roster, got %+v", users)
	}
}

func TestPeersExcludesGivenUser(t *testing.T) {
	registry := NewRegistry()

	registry.Join("canvas-1", testConn("alice", "Alice", "s1"))
	registry.Join("canvas-1", testConn("carol", "Carol", "s2"))
	registry.Join("canvas-2", testConn("dave", "Dave", "s3"))

	peers := registry.Peers("canvas-1", "carol")
	if len(peers) != 1 {
		t.Fatalf("Expected 1 peer, got %d", len(peers))
	}
	if peers[0].SessionID() != "s1" {
		t.Errorf("Expected alice's session, got %s", peers[0].SessionID())
	}
}

func TestRosterOrderedByJoinTime(t *testing.T) {
	registry := NewRegistry()

	registry.Join("canvas-1", testConn("carol", "Carol", "s1"))
	registry.Join("canvas-1", testConn("alice", "Alice", "s2"))
	registry.Join("canvas-1", testConn("bob", "Bob", "s3"))

	users := registry.ActiveUsers("canvas-1")
	if len(users) != 3 {
		t.Fatalf("Expected 3 users, got %d", len(users))
	}
	for i := 1; i < len(users); i++ {
		if users[i].JoinedAt.Before(users[i-1].JoinedAt) {
			t.Errorf("Roster not ordered by join time: %+v", users)
		}
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	registry := NewRegistry()

	registry.Join("canvas-1", testConn("alice", "Alice", "s1"))
	registry.Join("canvas-2", testConn("bob", "Bob", "s2"))

	if len(registry.ActiveUsers("canvas-1")) != 1 {
		t.Error("canvas-1 should have exactly one member")
	}
	if len(registry.ActiveUsers("canvas-2")) != 1 {
		t.Error("canvas-2 should have exactly one member")
	}
}

func TestEmptyRosterIsDropped(t *testing.T) {
	registry := NewRegistry()
	conn := testConn("alice", "Alice", "s1")

	registry.Join("canvas-1", conn)
	registry.Leave("canvas-1", conn)

	registry.mu.RLock()
	_, exists := registry.rosters["canvas-1"]
	registry.mu.RUnlock()
	if exists {
		t.Error("An emptied roster should be removed from the registry")
	}
	if len(registry.ActiveUsers("canvas-1")) != 0 {
		t.Error("A dropped roster should read as empty")
	}

	// The canvas is joinable again afterwards.
	_, roster := registry.Join("canvas-1", testConn("bob", "Bob", "s2"))
	if len(roster) != 1 || roster[0].ID != "bob" {
		t.Errorf("Unexpected roster after rejoining a dropped room: %+v", roster)
	}
}

func TestConcurrentJoins(t *testing.T) {
	registry := NewRegistry()
	numUsers := 50

	var wg sync.WaitGroup
	for i := 0; i < numUsers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", index)
			registry.Join("canvas-1", testConn(userID, userID, fmt.Sprintf("s%d", index)))
		}(i)
	}
	wg.Wait()

	users := registry.ActiveUsers("canvas-1")
	if len(users) != numUsers {
		t.Errorf("Expected %d roster entries, got %d", numUsers, len(users))
	}
}

func TestConcurrentJoinsSameIdentity(t *testing.T) {
	registry := NewRegistry()
	numConns := 20

	var wg sync.WaitGroup
	for i := 0; i < numConns; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			registry.Join("canvas-1", testConn("alice", "Alice", fmt.Sprintf("s%d", index)))
		}(i)
	}
	wg.Wait()

	users := registry.ActiveUsers("canvas-1")
	if len(users) != 1 {
		t.Errorf("Expected a single roster entry for alice, got %d", len(users))
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	registry := NewRegistry()
	numRounds := 100

	var wg sync.WaitGroup
	for i := 0; i < numRounds; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			conn := testConn("alice", "Alice", fmt.Sprintf("s%d", index))
			registry.Join("canvas-1", conn)
			registry.Leave("canvas-1", conn)
		}(i)
	}
	wg.Wait()

	// Interleavings may leave alice present (a join landing after a leave)
	// or absent, but never duplicated.
	users := registry.ActiveUsers("canvas-1")
	if len(users) > 1 {
		t.Errorf("Expected at most one entry after racing join/leave, got %d", len(users))
	}
}
