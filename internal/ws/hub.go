package ws

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"collabhub/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RoomID identifies a shared document (the project id of the entity store).
type RoomID string

// ParticipantID is the stable user id handed out by the identity service.
type ParticipantID int64

// Participant is the identity bound to a connection at join time. Outbound
// frames only ever carry this identity, never one read from a payload.
type Participant struct {
	ID       ParticipantID
	Username string
}

// RoomStats is a point-in-time view of one active room.
type RoomStats struct {
	RoomID       RoomID `json:"room_id"`
	Connections  int    `json:"connections"`
	Participants int    `json:"participants"`

	LastActivity time.Time `json:"last_activity"`
}

var ErrAlreadyJoined = errors.New("connection already joined a room")

// Settings tunes per-connection behaviour.
type Settings struct {
	SendQueueSize   int
	MaxChatLength   int
	MaxMessageBytes int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		SendQueueSize:   64,
		MaxChatLength:   4000,
		MaxMessageBytes: 64 << 10,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      30 * time.Second, // must be < PongWait
	}
}

// Hub owns every active room. Rooms are created on first join and removed
// by the leave that empties them.
type Hub struct {
	settings Settings
	router   *router
	relay    Relay
	now      func() time.Time

	mu    sync.Mutex
	rooms map[RoomID]*room

	conns *connRegistry
}

type Option func(*Hub)

// WithRelay mirrors room broadcasts to other hub instances.
func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func NewHub(s Settings, opts ...Option) *Hub {
	h := &Hub{
		settings: s,
		router:   newRouter(s.MaxChatLength),
		now:      time.Now,
		rooms:    make(map[RoomID]*room),
		conns:    newConnRegistry(),
	}
	for _, o := range opts {
		o(h)
	}
	if h.relay != nil {
		h.relay.Attach(h.deliverRemote)
	}
	return h
}

func (h *Hub) newConn(rawConn *websocket.Conn) *clientConn {
	return newClientConn(rawConn, h.settings)
}

// Join registers c under roomID, announces the participant to the room and
// sends c the full presence snapshot, which is also returned.
func (h *Hub) Join(roomID RoomID, c *clientConn, p Participant) ([]UserView, error) {
	if !h.conns.bind(c, roomID, p) {
		return nil, ErrAlreadyJoined
	}

	var res addResult
	for {
		r := h.getOrCreate(roomID)
		var ok bool
		if res, ok = r.add(c, p, h.now(), func(users []UserView) bool {
			return h.queueFrame(c, newSnapshotOut(users))
		}); ok {
			break
		}
	}
	metrics.ActiveConnections.Inc()
	zap.L().Debug("ws.join",
		zap.String("room", string(roomID)),
		zap.Int64("user", int64(p.ID)),
		zap.String("conn", c.id),
	)

	if res.firstConn {
		h.broadcast(roomID, userJoinedOut{Type: TypeUserJoined, User: res.self}, c)
	}
	if !res.queued {
		h.evict(c)
	}
	return res.snapshot, nil
}

// Leave unregisters c and closes it. Unknown connections are ignored, so the
// transport may report the same disconnect more than once.
func (h *Hub) Leave(c *clientConn) {
	b, ok := h.conns.unbind(c)
	if !ok {
		return
	}
	c.close()

	r := h.lookup(b.roomID)
	if r == nil {
		return
	}
	res := r.remove(c)
	if !res.found {
		return
	}
	metrics.ActiveConnections.Dec()
	zap.L().Debug("ws.leave",
		zap.String("room", string(b.roomID)),
		zap.Int64("user", int64(res.participant)),
		zap.String("conn", c.id),
	)

	if res.lastConn {
		h.broadcast(b.roomID, userLeftOut{Type: TypeUserLeft, UserID: res.participant}, nil)
	}
	if res.empty {
		h.removeRoom(r)
	}
}

// Serve runs the receive loop of a connection that is about to join. It
// returns once the transport is gone, and by then c has left its room.
// Cancelling ctx closes the connection.
func (h *Hub) Serve(ctx context.Context, roomID RoomID, c *clientConn, p Participant) error {
	if _, err := h.Join(roomID, c, p); err != nil {
		return err
	}
	defer h.Leave(c)
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("ws.handler_panic", zap.String("conn", c.id), zap.Any("panic", rec))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.close()
		case <-c.done:
		}
	}()

	c.prepareRead()
	for {
		data, err := c.readMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.String("conn", c.id), zap.Error(err))
			}
			return nil
		}
		h.HandleMessage(c, data)
	}
}

// Rooms lists active rooms ordered by id.
func (h *Hub) Rooms() []RoomStats {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	out := make([]RoomStats, 0, len(rooms))
	for _, r := range rooms {
		if st := r.stats(); st.Connections > 0 {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Presence returns the presence snapshot of an active room.
func (h *Hub) Presence(roomID RoomID) ([]UserView, bool) {
	r := h.lookup(roomID)
	if r == nil || r.isClosed() {
		return nil, false
	}
	return r.snapshot(), true
}

func (h *Hub) getOrCreate(id RoomID) *room {
	h.mu.Lock()
	if r, ok := h.rooms[id]; ok && !r.isClosed() {
		h.mu.Unlock()
		return r
	}
	r := newRoom(id)
	h.rooms[id] = r
	h.mu.Unlock()

	metrics.ActiveRooms.Inc()
	if h.relay != nil {
		h.relay.Subscribe(id)
	}
	return r
}

func (h *Hub) lookup(id RoomID) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[id]
}

// removeRoom drops r unless a fresh room already replaced it.
func (h *Hub) removeRoom(r *room) {
	h.mu.Lock()
	if cur, ok := h.rooms[r.id]; ok && cur == r {
		delete(h.rooms, r.id)
	}
	h.mu.Unlock()

	metrics.ActiveRooms.Dec()
	if h.relay != nil {
		h.relay.Unsubscribe(r.id)
	}
	zap.L().Debug("ws.room_closed", zap.String("room", string(r.id)))
}
