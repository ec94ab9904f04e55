package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testEpoch is what the hub clock reads in tests unless a test moves it.
var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testEpoch }

func testHub(opts ...Option) *Hub {
	return NewHub(DefaultSettings(), append([]Option{WithClock(testClock)}, opts...)...)
}

func testConn(h *Hub) *clientConn {
	return newClientConn(nil, h.settings)
}

// drain returns every frame queued for c so far.
func drain(c *clientConn) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func decodeFrames(t *testing.T, frames [][]byte) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func ofType(frames []map[string]any, typ MessageType) []map[string]any {
	var out []map[string]any
	for _, f := range frames {
		if f["type"] == string(typ) {
			out = append(out, f)
		}
	}
	return out
}

func mustJoin(t *testing.T, h *Hub, roomID RoomID, c *clientConn, id int64, name string) []UserView {
	t.Helper()
	snap, err := h.Join(roomID, c, Participant{ID: ParticipantID(id), Username: name})
	require.NoError(t, err)
	return snap
}

func ids(users []UserView) []ParticipantID {
	out := make([]ParticipantID, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
