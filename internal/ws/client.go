package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn is one live websocket. Outbound frames go through a bounded
// queue drained by writePump, so a broadcaster never blocks on a slow peer.
type clientConn struct {
	id       string
	rawConn  *websocket.Conn
	settings Settings

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClientConn(rawConn *websocket.Conn, s Settings) *clientConn {
	return &clientConn{
		id:       uuid.NewString(),
		rawConn:  rawConn,
		settings: s,
		send:     make(chan []byte, s.SendQueueSize),
		done:     make(chan struct{}),
	}
}

// enqueue never blocks. false means the connection is closed or its queue
// is full.
func (c *clientConn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.rawConn != nil {
			_ = c.rawConn.Close()
		}
	})
}

func (c *clientConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump owns every write to rawConn, including keepalive pings.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws.write_failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.settings.WriteWait)
			if err := c.rawConn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				zap.L().Debug("ws.ping_failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		}
	}
}

// prepareRead installs the read limit and the pong-extended read deadline.
func (c *clientConn) prepareRead() {
	c.rawConn.SetReadLimit(c.settings.MaxMessageBytes)
	_ = c.rawConn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})
}

func (c *clientConn) readMessage() ([]byte, error) {
	_, data, err := c.rawConn.ReadMessage()
	return data, err
}
