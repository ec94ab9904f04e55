package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(8000), cfg.HttpServerPort)
	assert.Equal(t, 64, cfg.WsSendQueueSize)
	assert.Equal(t, 4000, cfg.WsMaxChatLength)
	assert.Equal(t, 60*time.Second, cfg.WsPongWait)
	assert.Equal(t, 30*time.Second, cfg.WsPingPeriod)
	assert.False(t, cfg.RedisRelayEnabled)
	assert.Empty(t, cfg.WsAllowedOrigins)
	assert.Equal(t, 1024, cfg.RedisRelayQueue)
	assert.Zero(t, cfg.RedisPoolSize)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("WS_SEND_QUEUE_SIZE", "8")
	t.Setenv("REDIS_RELAY_ENABLED", "true")
	t.Setenv("WS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.WsSendQueueSize)
	assert.True(t, cfg.RedisRelayEnabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.WsAllowedOrigins)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":      {"JWT_SECRET_KEY": ""},
		"zero queue":          {"JWT_SECRET_KEY": "s", "WS_SEND_QUEUE_SIZE": "0"},
		"ping after pong":     {"JWT_SECRET_KEY": "s", "WS_PING_PERIOD": "90s"},
		"unparseable timeout": {"JWT_SECRET_KEY": "s", "WS_WRITE_WAIT": "soon"},
		"port out of range":   {"JWT_SECRET_KEY": "s", "HTTP_SERVER_PORT": "80"},
		"empty relay queue":   {"JWT_SECRET_KEY": "s", "REDIS_RELAY_QUEUE": "0"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
