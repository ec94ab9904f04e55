package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"collabhub/internal/http/roomhandler"
	"collabhub/internal/metrics"
	"collabhub/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	hub        *ws.Hub
	wsSrv      *ws.WsServer
}

func NewHttpServer(listenPort uint16, wsSrv *ws.WsServer, hub *ws.Hub) *httpServer {
	h := &httpServer{
		listenPort: listenPort,
		wsSrv:      wsSrv,
		hub:        hub,
	}
	h.srv = http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Engine wires every route. It is split from Start so tests can drive it
// through httptest.
func (h *httpServer) Engine() *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	routerEngine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// websocket endpoint
	routerEngine.GET("/ws/project/:project_id", h.wsSrv.Handle)

	// room inspection
	rh := roomhandler.New(h.hub)
	rh.Register(routerEngine)

	return routerEngine
}

// Start blocks until the server is disposed or fails.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http_listen", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish. Hijacked websocket
// connections are not tracked by net/http; they close when the server
// context passed to the ws server is cancelled.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}
