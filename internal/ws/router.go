package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"collabhub/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var errMalformed = errors.New("Invalid message format")

type unknownTypeError struct{ typ MessageType }

func (e unknownTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.typ)
}

// router decodes client frames into the closed set of inbound variants.
type router struct {
	validate      *validator.Validate
	maxChatLength int
}

func newRouter(maxChatLength int) *router {
	return &router{validate: validator.New(), maxChatLength: maxChatLength}
}

func (rt *router) decode(raw []byte) (inbound, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, errMalformed
	}
	switch h.Type {
	case TypeCursorUpdate:
		return decodeInto[CursorUpdate](rt, raw)
	case TypeDocumentUpdate:
		return decodeInto[DocumentUpdate](rt, raw)
	case TypeChatMessage:
		msg, err := decodeInto[ChatMessage](rt, raw)
		if err != nil {
			return nil, err
		}
		if rt.maxChatLength > 0 && utf8.RuneCountInString(msg.Message) > rt.maxChatLength {
			return nil, errMalformed
		}
		return msg, nil
	case TypePing:
		return decodeInto[Ping](rt, raw)
	default:
		return nil, unknownTypeError{typ: h.Type}
	}
}

func decodeInto[T any](rt *router, raw []byte) (*T, error) {
	msg := new(T)
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, errMalformed
	}
	if err := rt.validate.Struct(msg); err != nil {
		return nil, errMalformed
	}
	return msg, nil
}

// HandleMessage processes one frame read from c. Frames from a connection
// are handled in the order they were read.
func (h *Hub) HandleMessage(c *clientConn, raw []byte) {
	b, ok := h.conns.lookup(c)
	if !ok {
		return
	}

	msg, err := h.router.decode(raw)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues("invalid").Inc()
		zap.L().Debug("ws.bad_message", zap.String("conn", c.id), zap.Error(err))
		h.sendOne(c, newErrorOut(err.Error()))
		return
	}
	metrics.MessagesReceived.WithLabelValues(string(msg.inboundType())).Inc()

	switch m := msg.(type) {
	case *CursorUpdate:
		h.onCursorUpdate(c, b, m)
	case *DocumentUpdate:
		h.broadcast(b.roomID, documentUpdateOut{
			Type:   TypeDocumentUpdate,
			UserID: b.participant.ID,
			Action: m.Action,
			Data:   m.Data,
		}, c)
	case *ChatMessage:
		// Echoed to the sender too, as delivery confirmation.
		h.broadcast(b.roomID, chatMessageOut{
			Type:      TypeChatMessage,
			UserID:    b.participant.ID,
			Username:  b.participant.Username,
			Message:   m.Message,
			Timestamp: m.Timestamp,
		}, nil)
	case *Ping:
		h.sendOne(c, pongOut{Type: TypePong, Timestamp: m.Timestamp})
	default:
		h.sendOne(c, newErrorOut(unknownTypeError{typ: msg.inboundType()}.Error()))
	}
}

func (h *Hub) onCursorUpdate(c *clientConn, b binding, m *CursorUpdate) {
	r := h.lookup(b.roomID)
	if r == nil {
		return
	}
	view, ok := r.moveCursor(b.participant.ID, m.X, m.Y, m.Timestamp, h.now())
	if !ok {
		return
	}
	h.broadcast(b.roomID, cursorUpdateOut{
		Type:   TypeCursorUpdate,
		UserID: b.participant.ID,
		Cursor: view.Cursor,
	}, c)
}
