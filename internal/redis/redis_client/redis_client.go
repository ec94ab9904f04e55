package redis_client

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const clientName = "collabhub-relay"

// NewRedisClient connects the cross-instance relay. Each room subscription
// holds its own connection outside the pool, so the pool only serves
// publishes. poolSize <= 0 sizes it from the CPU count.
func NewRedisClient(host string, port, poolSize int) (*redis.Client, error) {
	if poolSize <= 0 {
		poolSize = defaultPoolSize()
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	rc := redis.NewClient(&redis.Options{
		Addr:       addr,
		ClientName: clientName,
		PoolSize:   poolSize,
	})

	ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFunc()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		err = errors.New("Redis connection failed: " + err.Error())
		zap.L().Error("redis_connect", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}
	zap.L().Info("redis_connect", zap.String("addr", addr), zap.Int("pool", poolSize))
	return rc, nil
}

// One publisher goroutine drains the relay queue, so a handful of
// connections per CPU is plenty.
func defaultPoolSize() int {
	n := runtime.NumCPU() * 2
	if n > 64 {
		n = 64
	}
	return n
}
