package ws

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/config"
)

// Server accepts WebSocket connections, resolves identity once per accept,
// and runs each connection's pumps.
type Server struct {
	cfg      *config.Config
	verifier *auth.Verifier
	handler  *Handler
	log      *zap.SugaredLogger
}

func NewServer(cfg *config.Config, v *auth.Verifier, h *Handler, log *zap.SugaredLogger) *Server {
	return &Server{cfg: cfg, verifier: v, handler: h, log: log}
}

// HandleWS is mounted behind the fiber websocket upgrade middleware.
// Connect with /v1/ws?token=<jwt>.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		id, err := s.verifier.Verify(token)
		if err != nil {
			s.log.Debugw("rejecting connection, bad token", "error", err)
			_ = conn.Close()
			return
		}

		client := NewClient(uuid.New().String(), conn)
		peer := &Peer{Conn: client, UserID: id.UserID, Username: id.Username}
		s.log.Infow("connection accepted", "conn", client.ID(), "user", id.UserID)

		go client.WritePump(s.cfg.PingInterval, s.cfg.WriteDeadline)
		s.readLoop(conn, client, peer)

		s.handler.Disconnect(peer)
		client.Close()
		s.log.Infow("connection closed", "conn", client.ID())
	}
}

func (s *Server) readLoop(conn *websocket.Conn, client *Client, peer *Peer) {
	limiter := newRateLimiter(s.cfg.WS.RateLimitBurst, s.cfg.RateInterval)

	conn.SetReadLimit(s.cfg.WS.MaxMessageSizeBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Debugw("read error", "conn", client.ID(), "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !limiter.allow() {
			s.log.Debugw("rate limit exceeded, discarding frame", "conn", client.ID())
			continue
		}
		s.handler.Handle(peer, data)
	}
}
