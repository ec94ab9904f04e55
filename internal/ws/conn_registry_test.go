package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnRegistryBindUnbind(t *testing.T) {
	cr := newConnRegistry()
	c := newClientConn(nil, DefaultSettings())
	p := Participant{ID: 1, Username: "alice"}

	require.True(t, cr.bind(c, "r1", p))
	assert.False(t, cr.bind(c, "r2", p), "second bind must not overwrite")

	b, ok := cr.lookup(c)
	require.True(t, ok)
	assert.Equal(t, RoomID("r1"), b.roomID)
	assert.Equal(t, p, b.participant)

	b, ok = cr.unbind(c)
	require.True(t, ok)
	assert.Equal(t, RoomID("r1"), b.roomID)

	_, ok = cr.unbind(c)
	assert.False(t, ok)
	_, ok = cr.lookup(c)
	assert.False(t, ok)
	assert.Zero(t, cr.len())
}

func TestClientConnEnqueue(t *testing.T) {
	s := DefaultSettings()
	s.SendQueueSize = 2
	c := newClientConn(nil, s)

	assert.True(t, c.enqueue([]byte("1")))
	assert.True(t, c.enqueue([]byte("2")))
	assert.False(t, c.enqueue([]byte("3")), "full queue")

	drain(c)
	c.close()
	c.close()
	assert.True(t, c.closed())
	assert.False(t, c.enqueue([]byte("4")), "closed")
}
