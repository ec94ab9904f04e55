package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"collabhub/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPublishQueue   = 1024
	defaultPublishTimeout = 2 * time.Second
)

// Relay carries room broadcasts between hub instances.
type Relay interface {
	// Attach sets the callback used for frames that originated elsewhere.
	Attach(deliver func(RoomID, []byte))
	Subscribe(roomID RoomID)
	Unsubscribe(roomID RoomID)
	Publish(roomID RoomID, data []byte)
}

// relayFrame is what travels over "collab:<room>:events".
type relayFrame struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// RedisRelay keeps exactly one Redis subscription per locally active room,
// no matter how often the room is created and torn down concurrently.
// Publishing goes through a bounded queue drained by one goroutine, so a
// slow Redis costs dropped frames rather than a stalled broadcaster.
type RedisRelay struct {
	rdb        *redis.Client
	instanceID string

	queueSize      int
	publishTimeout time.Duration
	out            chan outFrame
	closing        chan struct{}
	stopped        chan struct{}
	closeOnce      sync.Once

	mu      sync.Mutex
	deliver func(RoomID, []byte)
	subs    map[RoomID]*subEntry
}

type outFrame struct {
	roomID  RoomID
	payload string
}

type RelayOption func(*RedisRelay)

// WithPublishQueue bounds the number of frames waiting for Redis.
func WithPublishQueue(size int) RelayOption {
	return func(rr *RedisRelay) { rr.queueSize = size }
}

func WithPublishTimeout(d time.Duration) RelayOption {
	return func(rr *RedisRelay) { rr.publishTimeout = d }
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func NewRedisRelay(rdb *redis.Client, instanceID string, opts ...RelayOption) *RedisRelay {
	rr := &RedisRelay{
		rdb:            rdb,
		instanceID:     instanceID,
		queueSize:      defaultPublishQueue,
		publishTimeout: defaultPublishTimeout,
		closing:        make(chan struct{}),
		stopped:        make(chan struct{}),
		subs:           make(map[RoomID]*subEntry),
	}
	for _, o := range opts {
		o(rr)
	}
	if rr.queueSize < 1 {
		rr.queueSize = 1
	}
	rr.out = make(chan outFrame, rr.queueSize)
	go rr.publishLoop()
	return rr
}

func channelFor(roomID RoomID) string {
	return "collab:" + string(roomID) + ":events"
}

// roomFromChannel parses "collab:<room>:events". Room ids may contain ':'.
func roomFromChannel(ch string) (RoomID, bool) {
	if !strings.HasPrefix(ch, "collab:") || !strings.HasSuffix(ch, ":events") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(ch, "collab:"), ":events")
	if id == "" {
		return "", false
	}
	return RoomID(id), true
}

func (rr *RedisRelay) Attach(deliver func(RoomID, []byte)) {
	rr.mu.Lock()
	rr.deliver = deliver
	rr.mu.Unlock()
}

// Subscribe starts the fan-in loop for roomID on first use; later calls only
// bump the ref-counter.
func (rr *RedisRelay) Subscribe(roomID RoomID) {
	rr.mu.Lock()
	if e, ok := rr.subs[roomID]; ok {
		e.refCnt++
		rr.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rr.subs[roomID] = &subEntry{refCnt: 1, cancel: cancel}
	rr.mu.Unlock()

	// Dialing happens on the fan-in goroutine; Join never waits for Redis.
	go func() {
		ps := rr.rdb.Subscribe(ctx, channelFor(roomID))
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				rr.handle(m)
			}
		}
	}()
}

// Unsubscribe decrements the ref-counter and tears the subscription down
// when it reaches zero.
func (rr *RedisRelay) Unsubscribe(roomID RoomID) {
	rr.mu.Lock()
	e, ok := rr.subs[roomID]
	if !ok {
		rr.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		rr.mu.Unlock()
		return
	}
	delete(rr.subs, roomID)
	rr.mu.Unlock()

	e.cancel()
}

// Publish queues data for the other instances and never blocks. A full
// queue or a closed relay drops the frame.
func (rr *RedisRelay) Publish(roomID RoomID, data []byte) {
	payload, err := json.Marshal(relayFrame{Origin: rr.instanceID, Data: data})
	if err != nil {
		zap.L().Error("relay.encode", zap.Error(err))
		return
	}
	select {
	case <-rr.closing:
		return
	default:
	}
	select {
	case rr.out <- outFrame{roomID: roomID, payload: string(payload)}:
	default:
		metrics.RelayPublishErrors.Inc()
		zap.L().Warn("relay.queue_full", zap.String("room", string(roomID)))
	}
}

// Close stops accepting frames, flushes what is already queued and waits
// for the publisher to finish.
func (rr *RedisRelay) Close() {
	rr.closeOnce.Do(func() { close(rr.closing) })
	<-rr.stopped
}

func (rr *RedisRelay) publishLoop() {
	defer close(rr.stopped)
	for {
		select {
		case f := <-rr.out:
			rr.publish(f)
		case <-rr.closing:
			for {
				select {
				case f := <-rr.out:
					rr.publish(f)
				default:
					return
				}
			}
		}
	}
}

func (rr *RedisRelay) publish(f outFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), rr.publishTimeout)
	defer cancel()
	if err := rr.rdb.Publish(ctx, channelFor(f.roomID), f.payload).Err(); err != nil {
		metrics.RelayPublishErrors.Inc()
		zap.L().Warn("relay.publish", zap.String("room", string(f.roomID)), zap.Error(err))
	}
}

func (rr *RedisRelay) handle(m *redis.Message) {
	roomID, ok := roomFromChannel(m.Channel)
	if !ok {
		return
	}
	var f relayFrame
	if err := json.Unmarshal([]byte(m.Payload), &f); err != nil {
		zap.L().Warn("relay.decode", zap.String("channel", m.Channel), zap.Error(err))
		return
	}
	if f.Origin == rr.instanceID || len(f.Data) == 0 {
		return
	}

	rr.mu.Lock()
	deliver := rr.deliver
	rr.mu.Unlock()
	if deliver != nil {
		deliver(roomID, f.Data)
	}
}

func (rr *RedisRelay) subscriptions() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.subs)
}
