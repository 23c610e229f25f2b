package websocket

import (
	"context"
	"net/http"

	"whosaidit/auth"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades authenticated requests and hands the connections to the
// Coordinator.
type Server struct {
	ctx         context.Context
	coordinator *Coordinator
	tokens      *auth.TokenManager
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewServer builds the upgrade handler. ctx bounds the lifetime of every
// connection's engine calls. An empty allowedOrigins list, or one containing
// "*", accepts any origin.
func NewServer(ctx context.Context, coordinator *Coordinator, tokens *auth.TokenManager, allowedOrigins []string, logger *zap.Logger) *Server {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Server{
		ctx:         ctx,
		coordinator: coordinator,
		tokens:      tokens,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins["*"] || origins[origin]
			},
		},
	}
}

// HandleConnections handles incoming WebSocket connections
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.ParseToken(auth.TokenFromRequest(r))
	if err != nil {
		s.logger.Warn("Failed to validate token", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade は失敗時に自分でエラーレスポンスを書く
		s.logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := newClient(conn, claims, s.logger)
	s.coordinator.Register(client, claims.RoomCode, claims.PlayerID)
	s.logger.Info("New client added",
		zap.String("connId", client.ID()),
		zap.String("roomCode", claims.RoomCode),
		zap.String("playerId", claims.PlayerID))

	go client.writePump()
	go client.readPump(s.ctx, s.coordinator)
}
