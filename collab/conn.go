package collab

import "sync"

type (
	// Identity is the authenticated principal bound to a connection by the
	// gateway. It is immutable for the lifetime of the connection.
	Identity struct {
		ID   string `json:"userId"`
		Name string `json:"name"`
	}

	// Peer is the outbound half of a live connection. Send is best-effort
	// and at-most-once: a peer that cannot take the event simply misses it.
	Peer interface {
		// SessionID identifies the underlying transport connection, not the
		// user. Two connections by the same user have distinct session ids.
		SessionID() string
		Send(event string, payload any)
	}

	// Conn is one admitted client link. It holds the verified identity and
	// the canvas the connection is currently joined to, if any.
	Conn struct {
		identity Identity
		peer     Peer

		mu     sync.Mutex
		room   string // empty while not joined
		closed bool   // set once the transport reports the connection gone
	}
)

func newConn(identity Identity, peer Peer) *Conn {
	return &Conn{identity: identity, peer: peer}
}

func (c *Conn) Identity() Identity { return c.identity }

func (c *Conn) Peer() Peer { return c.peer }

// Room returns the canvas id the connection is joined to.
func (c *Conn) Room() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.room != ""
}

func (c *Conn) setRoom(roomID string) {
	c.mu.Lock()
	c.room = roomID
	c.mu.Unlock()
}

func (c *Conn) setClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
