package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"whosaidit/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingPeriod     = 10 * time.Second // 10秒ごとにPingを送信
	readWait       = 60 * time.Second // Pongが来なければ切断
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendQueueSize  = 64
)

var (
	errClientClosed = errors.New("client closed")
	errQueueFull    = errors.New("send queue full")
)

// Client is one gorilla websocket connection. Reads run in readPump; writes
// are serialised through the send queue in writePump.
type Client struct {
	Conn     *websocket.Conn
	RoomCode string
	PlayerID string

	id        string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func newClient(conn *websocket.Conn, claims *models.PlayerClaims, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		Conn:     conn,
		RoomCode: claims.RoomCode,
		PlayerID: claims.PlayerID,
		id:       id,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		logger:   logger.With(zap.String("connId", id), zap.String("playerId", claims.PlayerID)),
	}
}

func (cl *Client) ID() string { return cl.id }

// Send queues event without blocking. A slow client loses the event instead of
// stalling the broadcast.
func (cl *Client) Send(event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case <-cl.done:
		return errClientClosed
	default:
	}
	select {
	case cl.send <- data:
		return nil
	default:
		return errQueueFull
	}
}

func (cl *Client) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
		cl.Conn.Close()
	})
}

// クライアントごとにメッセージ読み取りするゴルーチン
func (cl *Client) readPump(ctx context.Context, coordinator *Coordinator) {
	defer func() {
		cl.close()
		coordinator.Disconnect(ctx, cl.id)
		cl.logger.Info("Client removed")
	}()

	cl.Conn.SetReadLimit(maxMessageSize)
	cl.Conn.SetReadDeadline(time.Now().Add(readWait))
	// Pongを受信したら読み取りデッドラインを更新
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, message, err := cl.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				cl.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		coordinator.Dispatch(ctx, cl.id, message)
	}
}

// writePump owns all writes to the connection, including pings.
func (cl *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.close()
	}()

	for {
		select {
		case <-cl.done:
			cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			cl.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-cl.send:
			cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cl.logger.Warn("Error writing message", zap.Error(err))
				return
			}
		case <-ticker.C:
			cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.logger.Error("Error sending ping", zap.Error(err))
				return
			}
		}
	}
}
