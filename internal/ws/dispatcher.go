package ws

import (
	"encoding/json"

	"collabhub/internal/metrics"

	"go.uber.org/zap"
)

// sendOne queues msg for c. A connection that cannot take it is evicted;
// the failure is never surfaced to the caller beyond the return value.
func (h *Hub) sendOne(c *clientConn, msg outbound) bool {
	if !h.queueFrame(c, msg) {
		h.evict(c)
		return false
	}
	return true
}

// queueFrame encodes msg and queues it for c without evicting on failure,
// so it is safe to call under a room lock.
func (h *Hub) queueFrame(c *clientConn, msg outbound) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("ws.encode", zap.String("type", string(msg.outboundType())), zap.Error(err))
		return false
	}
	if !c.enqueue(data) {
		return false
	}
	metrics.MessagesDelivered.WithLabelValues(string(msg.outboundType())).Inc()
	return true
}

// broadcast delivers msg to the local room and, when a relay is attached,
// to the same room on every other instance.
func (h *Hub) broadcast(roomID RoomID, msg outbound, exclude *clientConn) int {
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("ws.encode", zap.String("type", string(msg.outboundType())), zap.Error(err))
		return 0
	}
	n := h.sendRoom(roomID, data, exclude)
	metrics.MessagesDelivered.WithLabelValues(string(msg.outboundType())).Add(float64(n))
	if h.relay != nil {
		h.relay.Publish(roomID, data)
	}
	return n
}

// sendRoom writes an encoded frame to every local connection of the room
// except exclude. Connections that fail are evicted only after the loop, so
// the room's connection set is never mutated while it is being walked.
func (h *Hub) sendRoom(roomID RoomID, data []byte, exclude *clientConn) int {
	r := h.lookup(roomID)
	if r == nil {
		return 0
	}

	var (
		delivered int
		failed    []*clientConn
	)
	for _, c := range r.recipients(exclude) {
		if c.enqueue(data) {
			delivered++
			continue
		}
		failed = append(failed, c)
	}
	for _, c := range failed {
		h.evict(c)
	}
	return delivered
}

// deliverRemote is the relay's entry point for frames published elsewhere.
func (h *Hub) deliverRemote(roomID RoomID, data []byte) {
	h.sendRoom(roomID, data, nil)
}

func (h *Hub) evict(c *clientConn) {
	if _, ok := h.conns.lookup(c); !ok {
		c.close()
		return
	}
	metrics.Evictions.Inc()
	zap.L().Info("ws.evict", zap.String("conn", c.id), zap.Bool("closed", c.closed()))
	h.Leave(c)
}
