package models

import "encoding/json"

// Inbound message types.
const (
	MsgJoinRoom     = "join-room"
	MsgStartGame    = "start-game"
	MsgSubmitAnswer = "submit-answer"
	MsgSubmitVote   = "submit-vote"
	MsgMarkReady    = "mark-ready"
	MsgPlayAgain    = "play-again"
	MsgLeaveRoom    = "leave-room"
)

// Outbound event types.
const (
	EventRoomState          = "room-state"
	EventPlayerJoined       = "player-joined"
	EventPlayerReconnected  = "player-reconnected"
	EventGameStarted        = "game-started"
	EventAnswerSubmitted    = "answer-submitted"
	EventVotingPhase        = "voting-phase"
	EventVoteSubmitted      = "vote-submitted"
	EventRoundResults       = "round-results"
	EventPlayerReady        = "player-ready"
	EventNextRound          = "next-round"
	EventGameOver           = "game-over"
	EventGameReset          = "game-reset"
	EventPlayerLeft         = "player-left"
	EventPlayerDisconnected = "player-disconnected"
	EventError              = "error"
)

// ClientMessage はクライアントから届くメッセージ
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event はクライアントへ送るメッセージ
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JoinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PlayerActionPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type SubmitAnswerPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Answer   string `json:"answer"`
}

// SubmitVotePayload names the chosen answer by AnswerID (as found on the
// ballot). VotedForPlayerID is accepted when AnswerID is empty.
type SubmitVotePayload struct {
	RoomCode         string `json:"roomCode"`
	PlayerID         string `json:"playerId"`
	AnswerID         string `json:"answerId,omitempty"`
	VotedForPlayerID string `json:"votedForPlayerId,omitempty"`
}

type PlayAgainPayload struct {
	RoomCode string `json:"roomCode"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RoomStateData is sent for room-state, game-started, next-round and game-reset.
type RoomStateData struct {
	Room            *Room  `json:"room"`
	CurrentQuestion string `json:"currentQuestion,omitempty"`
}

// PlayerEventData is sent when a single player's status changes.
type PlayerEventData struct {
	PlayerID string  `json:"playerId"`
	Player   *Player `json:"player,omitempty"`
	Room     *Room   `json:"room"`
}

type VotingPhaseData struct {
	Room    *Room             `json:"room"`
	Answers []AnonymousAnswer `json:"answers"`
}

type RoundResultsData struct {
	Room    *Room         `json:"room"`
	Results []RoundResult `json:"results"`
}

type GameOverData struct {
	Room        *Room        `json:"room"`
	FinalScores []FinalScore `json:"finalScores"`
	Winner      *FinalScore  `json:"winner"`
}
