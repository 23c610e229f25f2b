package models

import (
	"strings"
	"time"
)

// GameState はルームの進行フェーズ
type GameState string

const (
	StateWaiting   GameState = "waiting"
	StateAnswering GameState = "answering"
	StateVoting    GameState = "voting"
	StateResults   GameState = "results"
	StateFinished  GameState = "finished"
)

// Player はルーム内の参加者。切断中のプレイヤーも IsConnected=false として残る
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	ConnectionID string `json:"connectionId,omitempty"` // 空文字は未接続
	IsConnected  bool   `json:"isConnected"`
	HasAnswered  bool   `json:"hasAnswered"`
	HasVoted     bool   `json:"hasVoted"`
	IsReady      bool   `json:"isReady"`
}

// Answer の ID は投票用の不透明なID。投票中は作者と結びつく形で外に出さない
type Answer struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
}

type Vote struct {
	VoterID          string `json:"voterId"`
	VotedForPlayerID string `json:"votedForPlayerId"`
}

// Round は1ラウンド分の履歴。回答と投票は追記のみ
type Round struct {
	QuestionTemplate string   `json:"questionTemplate"`
	TargetPlayerID   string   `json:"targetPlayerId"`
	TargetPlayerName string   `json:"targetPlayerName"`
	Answers          []Answer `json:"answers"`
	Votes            []Vote   `json:"votes"`
}

// Room はルームコードをキーとする1ゲーム分のドキュメント
type Room struct {
	RoomCode      string    `json:"roomCode"`
	HostID        string    `json:"hostId"`
	Players       []Player  `json:"players"`
	GameState     GameState `json:"gameState"`
	CurrentRound  int       `json:"currentRound"`
	TotalRounds   int       `json:"totalRounds"`
	Rounds        []Round   `json:"rounds"`
	UsedQuestions []string  `json:"usedQuestions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewRoom creates a waiting room whose only player is the host.
func NewRoom(code string, host Player, now time.Time) *Room {
	return &Room{
		RoomCode:      code,
		HostID:        host.ID,
		Players:       []Player{host},
		GameState:     StateWaiting,
		Rounds:        []Round{},
		UsedQuestions: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy so callers never share slices with a stored document.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = cloneSlice(r.Players)
	c.UsedQuestions = cloneSlice(r.UsedQuestions)
	c.Rounds = make([]Round, len(r.Rounds))
	for i, round := range r.Rounds {
		round.Answers = cloneSlice(round.Answers)
		round.Votes = cloneSlice(round.Votes)
		c.Rounds[i] = round
	}
	return &c
}

// PublicView is the room as clients may see it. While answers are being
// written or voted on, the current round's answers and votes are withheld so
// nobody can tell who wrote what. From results onward everything is shown.
func (r *Room) PublicView() *Room {
	v := r.Clone()
	if v == nil {
		return nil
	}
	if v.GameState != StateAnswering && v.GameState != StateVoting {
		return v
	}
	if round := v.ActiveRound(); round != nil {
		round.Answers = []Answer{}
		round.Votes = []Vote{}
	}
	return v
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

// Player returns a pointer into r.Players, or nil.
func (r *Room) Player(id string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) ConnectedPlayers() []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsConnected {
			out = append(out, p)
		}
	}
	return out
}

// AllConnected reports whether at least one player is connected and every
// connected player satisfies cond.
func (r *Room) AllConnected(cond func(Player) bool) bool {
	connected := 0
	for _, p := range r.Players {
		if !p.IsConnected {
			continue
		}
		connected++
		if !cond(p) {
			return false
		}
	}
	return connected > 0
}

// HasConnectedName reports whether a connected player already uses name (case-insensitive).
func (r *Room) HasConnectedName(name string) bool {
	for _, p := range r.Players {
		if p.IsConnected && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// ActiveRound returns the round for CurrentRound, or nil before the game starts.
func (r *Room) ActiveRound() *Round {
	if r.CurrentRound < 1 || r.CurrentRound > len(r.Rounds) {
		return nil
	}
	return &r.Rounds[r.CurrentRound-1]
}

func (r *Room) IsUsedQuestion(template string) bool {
	for _, q := range r.UsedQuestions {
		if q == template {
			return true
		}
	}
	return false
}

// ResetRoundFlags clears every player's per-round progress.
func (r *Room) ResetRoundFlags() {
	for i := range r.Players {
		r.Players[i].HasAnswered = false
		r.Players[i].HasVoted = false
		r.Players[i].IsReady = false
	}
}

// AnswerByID looks an answer up by its ballot id.
func (round *Round) AnswerByID(id string) *Answer {
	if id == "" {
		return nil
	}
	for i := range round.Answers {
		if round.Answers[i].ID == id {
			return &round.Answers[i]
		}
	}
	return nil
}

func (round *Round) AnswerBy(playerID string) *Answer {
	for i := range round.Answers {
		if round.Answers[i].PlayerID == playerID {
			return &round.Answers[i]
		}
	}
	return nil
}
