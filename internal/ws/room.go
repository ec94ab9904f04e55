package ws

import (
	"encoding/json"
	"sync"
	"time"
)

type room struct {
	id RoomID

	mu       sync.RWMutex
	conns    map[*clientConn]ParticipantID
	perUser  map[ParticipantID]int // live connections per participant
	presence *presenceStore
	closed   bool // set once the last connection left; a closed room is never reused
}

func newRoom(id RoomID) *room {
	return &room{
		id:       id,
		conns:    make(map[*clientConn]ParticipantID),
		perUser:  make(map[ParticipantID]int),
		presence: newPresenceStore(),
	}
}

type addResult struct {
	self      UserView
	snapshot  []UserView
	firstConn bool // first live connection of this participant
	queued    bool // snapshot frame accepted by c's send queue
}

// add registers c and hands the snapshot to queue while the room lock is
// still held, so no later room event can reach c ahead of it. queue must not
// block. ok is false when the room was closed concurrently and the caller
// must retry against a fresh room.
func (r *room) add(c *clientConn, p Participant, now time.Time, queue func([]UserView) bool) (res addResult, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return addResult{}, false
	}
	r.conns[c] = p.ID
	r.perUser[p.ID]++
	e, _ := r.presence.upsert(p, now)
	res = addResult{
		self:      e.view(),
		snapshot:  r.presence.snapshot(),
		firstConn: r.perUser[p.ID] == 1,
	}
	res.queued = queue(res.snapshot)
	return res, true
}

type removeResult struct {
	participant ParticipantID
	found       bool
	lastConn    bool // participant has no connection left, presence dropped
	empty       bool // room has no connection left and is now closed
}

func (r *room) remove(c *clientConn) removeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.conns[c]
	if !ok {
		return removeResult{}
	}
	delete(r.conns, c)
	res := removeResult{participant: pid, found: true}

	r.perUser[pid]--
	if r.perUser[pid] <= 0 {
		delete(r.perUser, pid)
		r.presence.remove(pid)
		res.lastConn = true
	}
	if len(r.conns) == 0 {
		r.closed = true
		res.empty = true
	}
	return res
}

// recipients takes a quick snapshot of the connections so that I/O happens
// outside the lock.
func (r *room) recipients(exclude *clientConn) []*clientConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*clientConn, 0, len(r.conns))
	for c := range r.conns {
		if c == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *room) moveCursor(id ParticipantID, x, y float64, ts json.RawMessage, now time.Time) (UserView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence.moveCursor(id, x, y, ts, now)
}

func (r *room) snapshot() []UserView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.presence.snapshot()
}

func (r *room) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *room) stats() RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomStats{
		RoomID:       r.id,
		Connections:  len(r.conns),
		Participants: r.presence.len(),
		LastActivity: r.presence.lastActivity(),
	}
}
