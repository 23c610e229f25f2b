package handlers

import (
	"net/http"
	"time"

	"whosaidit/auth"
	"whosaidit/internal/game"
	"whosaidit/middlewares"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoomHandler serves the request/response room operations.
type RoomHandler struct {
	engine *game.Engine
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewRoomHandler(engine *game.Engine, tokens *auth.TokenManager, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{engine: engine, tokens: tokens, logger: logger}
}

// RegisterRoutes はルーム関連のルーティングを設定
func (h *RoomHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/rooms", middlewares.OptionalAuth(h.tokens, h.logger))
	api.POST("", h.CreateRoom)
	api.GET("/:code", h.GetRoom)
	api.POST("/:code/join", h.JoinRoom)
	api.POST("/:code/rejoin", h.RejoinRoom)
	router.GET("/health", Health)
}

type createRoomRequest struct {
	HostName string `json:"hostName"`
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type rejoinRoomRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(kind game.Kind) int {
	switch kind {
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindPreconditionFailed:
		return http.StatusConflict
	case game.KindValidation:
		return http.StatusBadRequest
	case game.KindResourceExhaustion:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *RoomHandler) fail(c *gin.Context, err error) {
	ge := game.AsError(err)
	if ge == game.ErrInternal {
		h.logger.Error("Room request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.Error(err)
	c.JSON(statusFor(ge.Kind), gin.H{
		"status": ge.Code,
		"error":  ge.Message,
	})
}

func (h *RoomHandler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"status": game.ErrBadMessage.Code,
		"error":  game.ErrBadMessage.Message,
	})
}

// issueToken は接続用のJWTを発行する。失敗時はレスポンスを書いてfalseを返す
func (h *RoomHandler) issueToken(c *gin.Context, roomCode, playerID string) (string, bool) {
	token, err := h.tokens.GenerateToken(roomCode, playerID)
	if err != nil {
		h.fail(c, err)
		return "", false
	}
	return token, true
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	room, playerID, err := h.engine.CreateRoom(c.Request.Context(), req.HostName)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, ok := h.issueToken(c, room.RoomCode, playerID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"roomCode": room.RoomCode,
		"playerId": playerID,
		"token":    token,
	})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, question, err := h.engine.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":            room.PublicView(),
		"currentQuestion": question,
	})
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	room, playerID, err := h.engine.JoinRoom(c.Request.Context(), c.Param("code"), req.PlayerName)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, ok := h.issueToken(c, room.RoomCode, playerID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":     room.PublicView(),
		"playerId": playerID,
		"token":    token,
	})
}

func (h *RoomHandler) RejoinRoom(c *gin.Context) {
	var req rejoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	// トークン付きの再参加は、そのトークンのプレイヤーに限る
	if claims, ok := middlewares.ClaimsFrom(c); ok {
		code, _ := game.NormalizeCode(c.Param("code"))
		if claims.RoomCode != code || claims.PlayerID != req.PlayerID {
			c.JSON(http.StatusForbidden, gin.H{
				"status": game.ErrIdentityMismatch.Code,
				"error":  game.ErrIdentityMismatch.Message,
			})
			return
		}
	}
	room, question, err := h.engine.RejoinRoom(c.Request.Context(), c.Param("code"), req.PlayerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, ok := h.issueToken(c, room.RoomCode, req.PlayerID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":            room.PublicView(),
		"currentQuestion": question,
		"playerId":        req.PlayerID,
		"token":           token,
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
