package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"collabhub/internal/auth"
	"collabhub/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Close codes sent when the handshake credential is rejected.
const (
	CloseMissingCredential = 4401
	CloseInvalidCredential = 4403
)

const authTimeout = 5 * time.Second

type WsServer struct {
	ctx      context.Context
	hub      *Hub
	authSvc  auth.IAuthService
	upgrader websocket.Upgrader
}

// NewWsServer builds the websocket entry point. An empty allowedOrigins
// accepts any origin. Cancelling ctx disconnects every client.
func NewWsServer(ctx context.Context, h *Hub, authSvc auth.IAuthService, allowedOrigins []string) *WsServer {
	return &WsServer{
		ctx:     ctx,
		hub:     h,
		authSvc: authSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle serves GET /ws/project/:project_id. The credential comes from the
// "token" query parameter or an Authorization bearer header.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	projectID := ginCtx.Param("project_id")
	token := bearerToken(ginCtx.Request)

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), authTimeout)
	identity, err := s.authSvc.Authenticate(ctx, token, projectID)
	cancel()
	if err != nil {
		s.reject(rawConn, err)
		return
	}

	// ─────────────────── Client joined ────────────────────────
	c := s.hub.newConn(rawConn)
	go c.writePump()

	p := Participant{ID: ParticipantID(identity.UserID), Username: identity.Username}
	if err := s.hub.Serve(s.ctx, RoomID(projectID), c, p); err != nil {
		zap.L().Warn("ws.serve", zap.String("conn", c.id), zap.Error(err))
		c.close()
	}
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

// reject sends a single error frame and closes with a reason that tells a
// missing credential apart from a bad one. Nothing has been registered yet.
func (s *WsServer) reject(rawConn *websocket.Conn, err error) {
	var (
		code   int
		reason string
		msg    string
	)
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		code, reason, msg = CloseMissingCredential, "missing credential", "Authentication token required"
	case errors.Is(err, auth.ErrInvalidCredential):
		code, reason, msg = CloseInvalidCredential, "invalid credential", "Invalid authentication token"
	case errors.Is(err, auth.ErrForbidden):
		code, reason, msg = CloseInvalidCredential, "invalid credential", "Access to project denied"
	default:
		zap.L().Error("ws.auth", zap.Error(err))
		code, reason, msg = websocket.CloseInternalServerErr, "internal error", "Internal server error"
	}
	metrics.AuthFailures.WithLabelValues(reason).Inc()

	deadline := time.Now().Add(s.hub.settings.WriteWait)
	if data, mErr := json.Marshal(newErrorOut(msg)); mErr == nil {
		_ = rawConn.SetWriteDeadline(deadline)
		_ = rawConn.WriteMessage(websocket.TextMessage, data)
	}
	_ = rawConn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = rawConn.Close()
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
