package ws

import "encoding/json"

// MessageType is the "type" discriminator carried by every WS frame.
type MessageType string

const (
	TypeCursorUpdate     MessageType = "cursor_update"
	TypeDocumentUpdate   MessageType = "document_update"
	TypeChatMessage      MessageType = "chat_message"
	TypePing             MessageType = "ping"
	TypePong             MessageType = "pong"
	TypePresenceSnapshot MessageType = "presence_snapshot"
	TypeUserJoined       MessageType = "user_joined"
	TypeUserLeft         MessageType = "user_left"
	TypeError            MessageType = "error"
)

// header is decoded first so the rest of the frame can be parsed into the
// matching variant.
type header struct {
	Type MessageType `json:"type"`
}

// ──────────────────────────── Client → server ────────────────────────────────

// inbound is implemented only by the client message types below.
type inbound interface {
	inboundType() MessageType
}

type CursorUpdate struct {
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// DocumentUpdate is relayed verbatim; the hub never looks inside Data.
type DocumentUpdate struct {
	Action string          `json:"action" validate:"required"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type ChatMessage struct {
	Message   string          `json:"message"   validate:"required"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type Ping struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

func (*CursorUpdate) inboundType() MessageType   { return TypeCursorUpdate }
func (*DocumentUpdate) inboundType() MessageType { return TypeDocumentUpdate }
func (*ChatMessage) inboundType() MessageType    { return TypeChatMessage }
func (*Ping) inboundType() MessageType           { return TypePing }

// ──────────────────────────── Server → client ────────────────────────────────

// outbound is implemented by every frame the hub writes.
type outbound interface {
	outboundType() MessageType
}

// Cursor is the public view of a participant's presence.
type Cursor struct {
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Color     string          `json:"color"`
	Username  string          `json:"username"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type UserView struct {
	ID       ParticipantID `json:"id"`
	Username string        `json:"username"`
	Cursor   Cursor        `json:"cursor"`
}

type cursorUpdateOut struct {
	Type   MessageType   `json:"type"`
	UserID ParticipantID `json:"user_id"`
	Cursor Cursor        `json:"cursor"`
}

type documentUpdateOut struct {
	Type   MessageType     `json:"type"`
	UserID ParticipantID   `json:"user_id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type chatMessageOut struct {
	Type      MessageType     `json:"type"`
	UserID    ParticipantID   `json:"user_id"`
	Username  string          `json:"username"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type pongOut struct {
	Type      MessageType     `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type presenceSnapshotOut struct {
	Type        MessageType `json:"type"`
	ActiveUsers []UserView  `json:"active_users"`
}

type userJoinedOut struct {
	Type MessageType `json:"type"`
	User UserView    `json:"user"`
}

type userLeftOut struct {
	Type   MessageType   `json:"type"`
	UserID ParticipantID `json:"user_id"`
}

type errorOut struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func (m cursorUpdateOut) outboundType() MessageType     { return m.Type }
func (m documentUpdateOut) outboundType() MessageType   { return m.Type }
func (m chatMessageOut) outboundType() MessageType      { return m.Type }
func (m pongOut) outboundType() MessageType             { return m.Type }
func (m presenceSnapshotOut) outboundType() MessageType { return m.Type }
func (m userJoinedOut) outboundType() MessageType       { return m.Type }
func (m userLeftOut) outboundType() MessageType         { return m.Type }
func (m errorOut) outboundType() MessageType            { return m.Type }

func newErrorOut(msg string) errorOut {
	return errorOut{Type: TypeError, Message: msg}
}

func newSnapshotOut(users []UserView) presenceSnapshotOut {
	if users == nil {
		users = []UserView{}
	}
	return presenceSnapshotOut{Type: TypePresenceSnapshot, ActiveUsers: users}
}
