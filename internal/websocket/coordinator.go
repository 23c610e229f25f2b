package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"whosaidit/internal/game"
	"whosaidit/models"

	"go.uber.org/zap"
)

// Conn is one subscriber connection as seen by the Coordinator.
type Conn interface {
	ID() string
	Send(event models.Event) error
}

// session binds a connection to the identity carried by its token.
type session struct {
	conn     Conn
	roomCode string
	playerID string
	joined   bool
}

// Coordinator maps connections to (room, player), forwards actions to the
// engine and fans results out to the room's subscribers.
type Coordinator struct {
	engine *game.Engine
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]*session
}

func NewCoordinator(engine *game.Engine, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		engine:   engine,
		logger:   logger,
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]*session),
	}
}

// Register records a new connection for the player named by its token. The
// connection receives room events only after a join-room message.
func (c *Coordinator) Register(conn Conn, roomCode, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conn.ID()] = &session{conn: conn, roomCode: strings.ToUpper(roomCode), playerID: playerID}
}

func (c *Coordinator) session(connID string) *session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[connID]
}

func (c *Coordinator) subscribe(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs, ok := c.rooms[s.roomCode]
	if !ok {
		subs = make(map[string]*session)
		c.rooms[s.roomCode] = subs
	}
	subs[s.conn.ID()] = s
	s.joined = true
}

func (c *Coordinator) unsubscribe(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.joined = false
	subs := c.rooms[s.roomCode]
	delete(subs, s.conn.ID())
	if len(subs) == 0 {
		delete(c.rooms, s.roomCode)
	}
}

// subscribers returns a snapshot so sends happen without holding the lock.
func (c *Coordinator) subscribers(roomCode string) []*session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subs := c.rooms[roomCode]
	out := make([]*session, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// SubscriberCount is the number of joined connections of a room.
func (c *Coordinator) SubscriberCount(roomCode string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms[roomCode])
}

func (c *Coordinator) send(s *session, eventType string, data interface{}) {
	if err := s.conn.Send(models.Event{Type: eventType, Data: data}); err != nil {
		c.logger.Warn("Failed to deliver event",
			zap.String("event", eventType),
			zap.String("connId", s.conn.ID()),
			zap.Error(err))
	}
}

// broadcast sends to every subscriber of roomCode except skipConnID.
func (c *Coordinator) broadcast(roomCode, skipConnID, eventType string, data interface{}) {
	for _, s := range c.subscribers(roomCode) {
		if s.conn.ID() == skipConnID {
			continue
		}
		c.send(s, eventType, data)
	}
}

func (c *Coordinator) sendError(s *session, err error) {
	ge := game.AsError(err)
	if ge == game.ErrInternal {
		c.logger.Error("Action failed", zap.String("connId", s.conn.ID()), zap.Error(err))
	}
	c.send(s, models.EventError, models.ErrorData{Code: ge.Code, Kind: string(ge.Kind), Message: ge.Message})
}

// checkIdentity fills empty fields from the session and rejects actions on
// behalf of another room or player.
func (s *session) checkIdentity(roomCode, playerID *string) error {
	if *roomCode == "" {
		*roomCode = s.roomCode
	}
	if !strings.EqualFold(*roomCode, s.roomCode) {
		return game.ErrIdentityMismatch
	}
	*roomCode = s.roomCode
	if playerID == nil {
		return nil
	}
	if *playerID == "" {
		*playerID = s.playerID
	}
	if *playerID != s.playerID {
		return game.ErrIdentityMismatch
	}
	return nil
}

// Dispatch handles one inbound message from connID.
func (c *Coordinator) Dispatch(ctx context.Context, connID string, raw []byte) {
	s := c.session(connID)
	if s == nil {
		return
	}
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(s, game.ErrBadMessage)
		return
	}

	var err error
	switch msg.Type {
	case models.MsgJoinRoom:
		err = c.handleJoin(ctx, s, msg.Payload)
	case models.MsgStartGame:
		err = c.handleStart(ctx, s, msg.Payload)
	case models.MsgSubmitAnswer:
		err = c.handleAnswer(ctx, s, msg.Payload)
	case models.MsgSubmitVote:
		err = c.handleVote(ctx, s, msg.Payload)
	case models.MsgMarkReady:
		err = c.handleReady(ctx, s, msg.Payload)
	case models.MsgPlayAgain:
		err = c.handlePlayAgain(ctx, s, msg.Payload)
	case models.MsgLeaveRoom:
		c.handleLeave(ctx, s, msg.Payload)
	default:
		c.logger.Info("Received unknown message type", zap.String("type", msg.Type))
		err = game.ErrBadMessage
	}
	if err != nil {
		c.sendError(s, err)
	}
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return game.ErrBadMessage
	}
	return nil
}

func (c *Coordinator) handleJoin(ctx context.Context, s *session, payload json.RawMessage) error {
	var p models.JoinRoomPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := s.checkIdentity(&p.RoomCode, &p.PlayerID); err != nil {
		return err
	}
	room, returning, err := c.engine.AttachConnection(ctx, p.RoomCode, p.PlayerID, s.conn.ID())
	if err != nil {
		// 部屋またはプレイヤーが見つからない場合は RoomNotFound として扱う
		if ge := game.AsError(err); ge.Kind == game.KindNotFound {
			return game.ErrRoomNotFound
		}
		return err
	}
	c.subscribe(s)

	public := room.PublicView()
	c.send(s, models.EventRoomState, models.RoomStateData{Room: public, CurrentQuestion: game.CurrentQuestion(room)})
	// 投票中に戻ってきたプレイヤーには自分用の投票リストを渡し直す
	if room.GameState == models.StateVoting {
		c.send(s, models.EventVotingPhase, models.VotingPhaseData{Room: public, Answers: c.engine.ShuffledAnswers(room, s.playerID)})
	}
	event := models.EventPlayerJoined
	if returning {
		event = models.EventPlayerReconnected
	}
	c.broadcast(s.roomCode, s.conn.ID(), event, models.PlayerEventData{PlayerID: s.playerID, Player: room.Player(s.playerID), Room: public})
	c.logger.Info("Player attached", zap.String("roomCode", s.roomCode), zap.String("playerId", s.playerID), zap.Bool("returning", returning))
	return nil
}

func (c *Coordinator) handleStart(ctx context.Context, s *session, payload json.RawMessage) error {
	var p models.PlayerActionPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := s.checkIdentity(&p.RoomCode, &p.PlayerID); err != nil {
		return err
	}
	room, question, err := c.engine.StartGame(ctx, p.RoomCode, p.PlayerID)
	if err != nil {
		return err
	}
	c.broadcast(s.roomCode, "", models.EventGameStarted, models.RoomStateData{Room: room.PublicView(), CurrentQuestion: question})
	return nil
}

func (c *Coordinator) handleAnswer(ctx context.Context, s *session, payload json.RawMessage) error {
	var p models.SubmitAnswerPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := s.checkIdentity(&p.RoomCode, &p.PlayerID); err != nil {
		return err
	}
	out, err := c.engine.SubmitAnswer(ctx, p.RoomCode, p.PlayerID, p.Answer)
	if err != nil {
		return err
	}
	c.broadcast(s.roomCode, "", models.EventAnswerSubmitted, models.PlayerEventData{PlayerID: p.PlayerID, Room: out.Room.PublicView()})
	if out.PhaseChanged {
		c.sendBallots(out)
	}
	return nil
}

// sendBallots gives each subscriber its own shuffled answer list. The room
// sent alongside never carries the round's attributed answers.
func (c *Coordinator) sendBallots(out *game.AnswerOutcome) {
	public := out.Room.PublicView()
	for _, sub := range c.subscribers(out.Room.RoomCode) {
		answers, ok := out.Ballots[sub.playerID]
		if !ok {
			answers = []models.AnonymousAnswer{}
		}
		c.send(sub, models.EventVotingPhase, models.VotingPhaseData{Room: public, Answers: answers})
	}
}

func (c *Coordinator) handleVote(ctx context.Context, s *session, payload json.RawMessage) error {
	var p models.SubmitVotePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := s.checkIdentity(&p.RoomCode, &p.PlayerID); err != nil {
		return err
	}
	var out *game.VoteOutcome
	var err error
	if p.AnswerID != "" {
		out, err = c.engine.SubmitVoteForAnswer(ctx, p.RoomCode, p.PlayerID, p.AnswerID)
	} else {
		out, err = c.engine.SubmitVote(ctx, p.RoomCode, p.PlayerID, p.VotedForPlayerID)
	}
	if err != nil {
		return err
	}
	c.broadcast(s.roomCode, "", models.EventVoteSubmitted, models.PlayerEventData{PlayerID: p.PlayerID, Room: out.Room.PublicView()})
	if out.PhaseChanged {
		c.broadcast(s.roomCode, "", models.EventRoundResults, models.RoundResultsData{Room: out.Room.PublicView(), Results: out.Results})
	}
	return nil
}

func (c *Coordinator) handleReady(ctx context.Context, s *session, payload json.RawMessage) error {
	var p models.PlayerActionPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := s.checkIdentity(&p.RoomCode, &p.PlayerID); err != nil {
		return err
	}
	out, err := c.engine.MarkReady(ctx, p.RoomCode, p.PlayerID)
	if errors.Is(err, game.ErrQuestionsExhausted) {
		// ready フラグは保存済み。全員に状態を見せ、ホストにはリセットを促す
		c.reportExhausted(ctx, s.roomCode, s.conn.ID(), p.PlayerID)
		return err
	}
	if err != nil {
		return err
	}
	c.broadcast(s.roomCode, "", models.EventPlayerReady, models.PlayerEventData{PlayerID: p.PlayerID, Room: out.Room.PublicView()})
	c.announceAdvance(out)
	return nil
}

// reportExhausted tells the room that the next round could not be dealt. The
// room stays in results until the host sends play-again.
func (c *Coordinator) reportExhausted(ctx context.Context, roomCode, skipConnID, playerID string) {
	room, _, err := c.engine.GetRoom(ctx, roomCode)
	if err != nil {
		c.logger.Error("Failed to load room after question exhaustion", zap.String("roomCode", roomCode), zap.Error(err))
		return
	}
	c.logger.Warn("No question left for the next round", zap.String("roomCode", roomCode))
	if playerID != "" {
		c.broadcast(roomCode, "", models.EventPlayerReady, models.PlayerEventData{PlayerID: playerID, Room: room.PublicView()})
	}
	for _, sub := range c.subscribers(roomCode) {
		if sub.playerID == room.HostID && sub.conn.ID() != skipConnID {
			c.sendError(sub, game.ErrQuestionsExhausted)
		}
	}
}

func (c *Coordinator) announceAdvance(out *game.ReadyOutcome) {
	if !out.Advanced {
		return
	}
	code := out.Room.RoomCode
	if out.GameOver {
		c.broadcast(code, "", models.EventGameOver, models.GameOverData{Room: out.Room.PublicView(), FinalScores: out.FinalScores, Winner: out.Winner})
		return
	}
	c.broadcast(code, "", models.EventNextRound, models.RoomStateData{Room: out.Room.PublicView(), CurrentQuestion: out.CurrentQuestion})
}

func (c *Coordinator) handlePlayAgain(ctx context.Context, s *session, payload json.RawMessage) error {
	var p models.PlayAgainPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := s.checkIdentity(&p.RoomCode, nil); err != nil {
		return err
	}
	room, err := c.engine.ResetGame(ctx, p.RoomCode)
	if err != nil {
		return err
	}
	c.broadcast(s.roomCode, "", models.EventGameReset, models.RoomStateData{Room: room.PublicView()})
	return nil
}

// handleLeave never reports errors to the sender.
func (c *Coordinator) handleLeave(ctx context.Context, s *session, payload json.RawMessage) {
	var p models.PlayerActionPayload
	if decode(payload, &p) != nil || s.checkIdentity(&p.RoomCode, &p.PlayerID) != nil {
		return
	}
	c.unsubscribe(s)
	room, err := c.engine.Leave(ctx, p.RoomCode, p.PlayerID)
	if err != nil {
		c.logger.Error("Failed to leave room", zap.String("roomCode", p.RoomCode), zap.Error(err))
		return
	}
	if room == nil {
		return
	}
	c.broadcast(s.roomCode, "", models.EventPlayerLeft, models.PlayerEventData{PlayerID: p.PlayerID, Room: room.PublicView()})
	c.settle(ctx, s.roomCode)
}

// Disconnect is called once when a connection closes.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	c.mu.Lock()
	s := c.sessions[connID]
	delete(c.sessions, connID)
	wasJoined := s != nil && s.joined
	c.mu.Unlock()
	if s == nil {
		return
	}
	c.unsubscribe(s)
	if !wasJoined {
		return
	}

	room, ok, err := c.engine.DetachConnection(ctx, s.roomCode, s.playerID, connID)
	if err != nil {
		c.logger.Error("Failed to detach connection", zap.String("roomCode", s.roomCode), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	c.broadcast(s.roomCode, "", models.EventPlayerDisconnected, models.PlayerEventData{PlayerID: s.playerID, Room: room.PublicView()})
	c.logger.Info("Player disconnected", zap.String("roomCode", s.roomCode), zap.String("playerId", s.playerID))
	c.settle(ctx, s.roomCode)
}

// settle lets the remaining players continue when the departing one was the
// last one the phase was waiting on.
func (c *Coordinator) settle(ctx context.Context, roomCode string) {
	st, err := c.engine.SettlePhase(ctx, roomCode)
	if errors.Is(err, game.ErrQuestionsExhausted) {
		c.reportExhausted(ctx, roomCode, "", "")
		return
	}
	if err != nil {
		c.logger.Error("Failed to settle phase", zap.String("roomCode", roomCode), zap.Error(err))
		return
	}
	switch {
	case st == nil:
	case st.Voting != nil:
		c.sendBallots(st.Voting)
	case st.Results != nil:
		c.broadcast(roomCode, "", models.EventRoundResults, models.RoundResultsData{Room: st.Results.Room.PublicView(), Results: st.Results.Results})
	case st.Ready != nil:
		c.announceAdvance(st.Ready)
	}
}
