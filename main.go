package main

import (
	"collabhub/internal/auth"
	"collabhub/internal/config"
	"collabhub/internal/database/db_client"
	"collabhub/internal/http/http_server"
	"collabhub/internal/redis/redis_client"
	"collabhub/internal/ws"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully",
		zap.Uint16("port", cfg.HttpServerPort),
		zap.Bool("redis_relay", cfg.RedisRelayEnabled),
		zap.Int("send_queue", cfg.WsSendQueueSize),
	)

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Postgres: identity + project membership lookups
	pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	authSvc := auth.NewAuthService(cfg.JwtSecretKey, pgDb)

	// 4. Hub, optionally relayed through Redis to other instances
	settings := ws.Settings{
		SendQueueSize:   cfg.WsSendQueueSize,
		MaxChatLength:   cfg.WsMaxChatLength,
		MaxMessageBytes: cfg.WsMaxMessageBytes,
		WriteWait:       cfg.WsWriteWait,
		PongWait:        cfg.WsPongWait,
		PingPeriod:      cfg.WsPingPeriod,
	}
	var opts []ws.Option
	if cfg.RedisRelayEnabled {
		redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPoolSize)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		instanceID := uuid.NewString()
		relay := ws.NewRedisRelay(redisClient, instanceID, ws.WithPublishQueue(cfg.RedisRelayQueue))
		defer relay.Close()
		opts = append(opts, ws.WithRelay(relay))
		Log.Info("redis relay enabled", zap.String("instance", instanceID))
	}
	hub := ws.NewHub(settings, opts...)

	// 5. HTTP + WS server
	wsSrv := ws.NewWsServer(ctx, hub, authSvc, cfg.WsAllowedOrigins)
	httpServer := http_server.NewHttpServer(cfg.HttpServerPort, wsSrv, hub)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("shutting down")
		_ = httpServer.Dispose()
	}
}
