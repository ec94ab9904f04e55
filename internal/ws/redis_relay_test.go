package ws

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"collabhub/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T, rdb *redis.Client, instanceID string, opts ...RelayOption) *RedisRelay {
	rr := NewRedisRelay(rdb, instanceID, opts...)
	t.Cleanup(rr.Close)
	return rr
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func waitSubscribers(t *testing.T, mr *miniredis.Miniredis, roomID RoomID, n int) {
	t.Helper()
	ch := channelFor(roomID)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(ch)[ch] == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoomFromChannel(t *testing.T) {
	id, ok := roomFromChannel("collab:42:events")
	assert.True(t, ok)
	assert.Equal(t, RoomID("42"), id)

	id, ok = roomFromChannel(channelFor("org:7"))
	assert.True(t, ok)
	assert.Equal(t, RoomID("org:7"), id)

	for _, bad := range []string{"auc:1:events", "collab::events", "collab:1", ""} {
		_, ok := roomFromChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestRelayCarriesBroadcastsBetweenHubs(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	h1 := testHub(WithRelay(newTestRelay(t, rdb, "instance-1")))
	h2 := testHub(WithRelay(newTestRelay(t, rdb, "instance-2")))

	a, b := testConn(h1), testConn(h2)
	mustJoin(t, h1, "7", a, 1, "alice")
	mustJoin(t, h2, "7", b, 2, "bob")
	waitSubscribers(t, mr, "7", 2)
	drain(a)
	drain(b)

	h1.HandleMessage(a, []byte(`{"type":"chat_message","message":"across"}`))

	var got []map[string]any
	require.Eventually(t, func() bool {
		got = append(got, ofType(decodeFrames(t, drain(b)), TypeChatMessage)...)
		return len(got) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "across", got[0]["message"])
	assert.Equal(t, float64(1), got[0]["user_id"])

	// The publisher's own frame comes back from Redis and must be dropped.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, ofType(decodeFrames(t, drain(a)), TypeChatMessage), 1)
}

func TestRelayAnnouncesLeaveToOtherInstances(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	h1 := testHub(WithRelay(newTestRelay(t, rdb, "instance-1")))
	h2 := testHub(WithRelay(newTestRelay(t, rdb, "instance-2")))

	a, b := testConn(h1), testConn(h2)
	mustJoin(t, h1, "7", a, 1, "alice")
	mustJoin(t, h2, "7", b, 2, "bob")
	waitSubscribers(t, mr, "7", 2)
	drain(b)

	h1.Leave(a)
	assert.Empty(t, h1.Rooms())

	require.Eventually(t, func() bool {
		return len(ofType(decodeFrames(t, drain(b)), TypeUserLeft)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	waitSubscribers(t, mr, "7", 1)
}

func TestRelaySubscriptionRefCount(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	rr := newTestRelay(t, rdb, "i")

	rr.Subscribe("9")
	rr.Subscribe("9")
	waitSubscribers(t, mr, "9", 1)
	assert.Equal(t, 1, rr.subscriptions())

	rr.Unsubscribe("9")
	assert.Equal(t, 1, rr.subscriptions())

	rr.Unsubscribe("9")
	assert.Zero(t, rr.subscriptions())
	waitSubscribers(t, mr, "9", 0)

	rr.Unsubscribe("9") // unknown room
	assert.Zero(t, rr.subscriptions())
}

func TestRelayHandleFiltersFrames(t *testing.T) {
	rr := newTestRelay(t, nil, "self")
	var delivered []RoomID
	rr.Attach(func(id RoomID, data []byte) {
		delivered = append(delivered, id)
		assert.JSONEq(t, `{"type":"user_left","user_id":3}`, string(data))
	})

	rr.handle(&redis.Message{Channel: "collab:5:events", Payload: `{"origin":"self","data":{"type":"user_left","user_id":3}}`})
	rr.handle(&redis.Message{Channel: "collab:5:events", Payload: `not json`})
	rr.handle(&redis.Message{Channel: "other:5", Payload: `{"origin":"peer","data":{"type":"user_left","user_id":3}}`})
	rr.handle(&redis.Message{Channel: "collab:5:events", Payload: `{"origin":"peer"}`})
	assert.Empty(t, delivered)

	rr.handle(&redis.Message{Channel: "collab:5:events", Payload: `{"origin":"peer","data":{"type":"user_left","user_id":3}}`})
	assert.Equal(t, []RoomID{"5"}, delivered)
}

func TestRelayPublish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rr := NewRedisRelay(db, "i1")

	mock.ExpectPublish("collab:5:events", `{"origin":"i1","data":{"type":"pong"}}`).SetVal(1)
	rr.Publish("5", []byte(`{"type":"pong"}`))

	mock.ExpectPublish("collab:5:events", `{"origin":"i1","data":{"type":"pong"}}`).SetErr(errors.New("connection reset"))
	rr.Publish("5", []byte(`{"type":"pong"}`))

	// Close flushes the queue, so both frames have reached the client.
	rr.Close()
	assert.NoError(t, mock.ExpectationsWereMet())

	rr.Publish("5", []byte(`{"type":"pong"}`)) // dropped after close
	assert.NoError(t, mock.ExpectationsWereMet())
}

// stalledRedis accepts connections and never answers.
func stalledRedis(t *testing.T) *redis.Client {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:         ln.Addr().String(),
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestStalledRedisDoesNotBlockBroadcasts(t *testing.T) {
	rr := newTestRelay(t, stalledRedis(t), "i1",
		WithPublishQueue(4), WithPublishTimeout(100*time.Millisecond))
	h := testHub(WithRelay(rr))

	a := testConn(h)
	start := time.Now()
	mustJoin(t, h, "7", a, 1, "alice")
	for i := 0; i < 3; i++ {
		dead := testConn(h)
		mustJoin(t, h, "7", dead, int64(i+2), "ghost")
		dead.close()
	}
	h.HandleMessage(a, []byte(`{"type":"document_update","action":"x"}`))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "joins and broadcasts must not wait for redis")

	snap, _ := h.Presence("7")
	assert.Equal(t, []ParticipantID{1}, ids(snap))

	dropped := testutil.ToFloat64(metrics.RelayPublishErrors)
	for i := 0; i < 20; i++ {
		h.HandleMessage(a, []byte(`{"type":"chat_message","message":"hello?"}`))
	}
	assert.Greater(t, testutil.ToFloat64(metrics.RelayPublishErrors), dropped)
	assert.Less(t, time.Since(start), time.Second)

	// a is still served locally.
	assert.Len(t, ofType(decodeFrames(t, drain(a)), TypeChatMessage), 20)
	h.Leave(a)
	assert.Zero(t, rr.subscriptions())
}
