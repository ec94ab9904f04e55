package ws

import "sync"

type binding struct {
	roomID      RoomID
	participant Participant
}

// connRegistry maps a live connection back to the room and identity it
// joined with, so disconnect handling needs nothing but the connection.
type connRegistry struct {
	mu       sync.Mutex
	bindings map[*clientConn]binding
}

func newConnRegistry() *connRegistry {
	return &connRegistry{bindings: make(map[*clientConn]binding)}
}

// bind returns false if c is already bound.
func (cr *connRegistry) bind(c *clientConn, roomID RoomID, p Participant) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, ok := cr.bindings[c]; ok {
		return false
	}
	cr.bindings[c] = binding{roomID: roomID, participant: p}
	return true
}

// unbind removes and returns the binding. A second call reports ok=false.
func (cr *connRegistry) unbind(c *clientConn) (binding, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	b, ok := cr.bindings[c]
	if ok {
		delete(cr.bindings, c)
	}
	return b, ok
}

func (cr *connRegistry) lookup(c *clientConn) (binding, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	b, ok := cr.bindings[c]
	return b, ok
}

func (cr *connRegistry) len() int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return len(cr.bindings)
}
