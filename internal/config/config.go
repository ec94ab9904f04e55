package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8000" validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"video_editor"`

	JwtSecretKey string `env:"JWT_SECRET_KEY" validate:"required"`

	RedisRelayEnabled bool   `env:"REDIS_RELAY_ENABLED" envDefault:"false"`
	RedisHost         string `env:"REDIS_HOST"          envDefault:"localhost"`
	RedisPort         uint16 `env:"REDIS_PORT"          envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE"     envDefault:"0"    validate:"min=0,max=512"`
	RedisRelayQueue   int    `env:"REDIS_RELAY_QUEUE"   envDefault:"1024" validate:"min=1,max=65536"`

	WsSendQueueSize   int           `env:"WS_SEND_QUEUE_SIZE"   envDefault:"64"    validate:"min=1,max=4096"`
	WsMaxChatLength   int           `env:"WS_MAX_CHAT_LENGTH"   envDefault:"4000"  validate:"min=1"`
	WsMaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"65536" validate:"min=512"`
	WsWriteWait       time.Duration `env:"WS_WRITE_WAIT"        envDefault:"10s"   validate:"gt=0"`
	WsPongWait        time.Duration `env:"WS_PONG_WAIT"         envDefault:"60s"   validate:"gt=0"`
	WsPingPeriod      time.Duration `env:"WS_PING_PERIOD"       envDefault:"30s"   validate:"gt=0,ltfield=WsPongWait"`

	WsAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
