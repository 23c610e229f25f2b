package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"whosaidit/models"
	"whosaidit/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MinPlayers はゲーム開始に必要な接続中プレイヤー数
	MinPlayers      = 3
	MaxAnswerLength = 200
)

// QuestionSource supplies prompt templates to the engine.
type QuestionSource interface {
	GetCandidate(ctx context.Context, exclude []string) (string, bool, error)
	RecordUsage(ctx context.Context, templates []string) error
}

// Engine runs the room state machine. It keeps no room state of its own: every
// operation re-reads the repository and mutates through ConditionalUpdate.
type Engine struct {
	repo      repository.RoomRepository
	questions QuestionSource
	logger    *zap.Logger

	randMu  sync.Mutex
	randGen *rand.Rand
	now     func() time.Time
	newID   func() string
}

func NewEngine(repo repository.RoomRepository, qs QuestionSource, logger *zap.Logger) *Engine {
	return &Engine{
		repo:      repo,
		questions: qs,
		logger:    logger,
		randGen:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// AnswerOutcome is the result of SubmitAnswer. Ballots is only set when this
// call moved the room into voting; it holds each player's shuffled answer list.
type AnswerOutcome struct {
	Room         *models.Room
	PhaseChanged bool
	Ballots      map[string][]models.AnonymousAnswer
}

// VoteOutcome is the result of SubmitVote. Results is set when this call
// closed the voting phase.
type VoteOutcome struct {
	Room         *models.Room
	PhaseChanged bool
	Results      []models.RoundResult
}

// ReadyOutcome is the result of MarkReady.
type ReadyOutcome struct {
	Room            *models.Room
	Advanced        bool
	GameOver        bool
	CurrentQuestion string
	FinalScores     []models.FinalScore
	Winner          *models.FinalScore
}

// NormalizeCode upper-cases a room code and checks its length.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if utf8.RuneCountInString(code) != repository.CodeLength {
		return "", ErrInvalidRoomCode
	}
	return code, nil
}

func (e *Engine) load(ctx context.Context, code string) (*models.Room, error) {
	room, err := e.repo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	return room, nil
}

// update runs a conditional update. When the predicate fails, diagnose is
// called with a fresh read so the caller gets a precise error.
func (e *Engine) update(ctx context.Context, code string, pred repository.Predicate, mutate repository.Mutation, diagnose func(*models.Room) error) (*models.Room, error) {
	room, err := e.repo.ConditionalUpdate(ctx, code, pred, mutate)
	switch {
	case err == nil:
		return room, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrRoomNotFound
	case errors.Is(err, repository.ErrPreconditionFailed):
		current, loadErr := e.load(ctx, code)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, diagnose(current)
	default:
		var gameErr *Error
		if errors.As(err, &gameErr) {
			return nil, gameErr
		}
		return nil, fmt.Errorf("update room %s: %w", code, err)
	}
}

func (e *Engine) shuffle(players []models.Player) []models.Player {
	out := append([]models.Player(nil), players...)
	e.randMu.Lock()
	e.randGen.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	e.randMu.Unlock()
	return out
}

func (e *Engine) pick(players []models.Player) models.Player {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return players[e.randGen.Intn(len(players))]
}

func (e *Engine) nextQuestion(ctx context.Context, room *models.Room) (string, error) {
	template, ok, err := e.questions.GetCandidate(ctx, room.UsedQuestions)
	if err != nil {
		return "", fmt.Errorf("pick question for %s: %w", room.RoomCode, err)
	}
	if !ok {
		return "", ErrQuestionsExhausted
	}
	return template, nil
}

func newRound(template string, target models.Player) models.Round {
	return models.Round{
		QuestionTemplate: template,
		TargetPlayerID:   target.ID,
		TargetPlayerName: target.Name,
		Answers:          []models.Answer{},
		Votes:            []models.Vote{},
	}
}

func startCheck(room *models.Room, requesterID string) error {
	if room.HostID != requesterID {
		return ErrNotHost
	}
	if len(room.ConnectedPlayers()) < MinPlayers {
		return ErrInsufficientPlayers
	}
	if room.GameState != models.StateWaiting {
		return ErrAlreadyStarted
	}
	return nil
}

// StartGame moves a waiting room into its first answering round.
func (e *Engine) StartGame(ctx context.Context, code, requesterID string) (*models.Room, string, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, "", err
	}
	room, err := e.load(ctx, code)
	if err != nil {
		return nil, "", err
	}
	if err := startCheck(room, requesterID); err != nil {
		return nil, "", err
	}
	template, err := e.nextQuestion(ctx, room)
	if err != nil {
		return nil, "", err
	}

	room, err = e.update(ctx, code,
		func(r *models.Room) bool { return startCheck(r, requesterID) == nil && !r.IsUsedQuestion(template) },
		func(r *models.Room) error {
			connected := r.ConnectedPlayers()
			target := e.shuffle(connected)[0]
			r.TotalRounds = len(connected)
			r.CurrentRound = 1
			r.Rounds = []models.Round{newRound(template, target)}
			r.UsedQuestions = append(r.UsedQuestions, template)
			r.ResetRoundFlags()
			r.GameState = models.StateAnswering
			return nil
		},
		func(r *models.Room) error {
			if err := startCheck(r, requesterID); err != nil {
				return err
			}
			return ErrQuestionsExhausted
		})
	if err != nil {
		return nil, "", err
	}
	e.logger.Info("Game started",
		zap.String("roomCode", code),
		zap.Int("totalRounds", room.TotalRounds))
	return room, CurrentQuestion(room), nil
}

// SubmitAnswer records playerID's answer for the current round and opens
// voting once every connected player has answered.
func (e *Engine) SubmitAnswer(ctx context.Context, code, playerID, text string) (*AnswerOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAnswer
	}
	if utf8.RuneCountInString(text) > MaxAnswerLength {
		return nil, ErrAnswerTooLong
	}
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	answerID := e.newID()
	room, err := e.update(ctx, code,
		func(r *models.Room) bool {
			p := r.Player(playerID)
			return r.GameState == models.StateAnswering && p != nil && !p.HasAnswered
		},
		func(r *models.Room) error {
			round := r.ActiveRound()
			if round == nil {
				return ErrNotInAnsweringPhase
			}
			p := r.Player(playerID)
			round.Answers = append(round.Answers, models.Answer{ID: answerID, PlayerID: p.ID, PlayerName: p.Name, Text: text})
			p.HasAnswered = true
			return nil
		},
		func(r *models.Room) error {
			switch p := r.Player(playerID); {
			case r.GameState != models.StateAnswering:
				return ErrNotInAnsweringPhase
			case p == nil:
				return ErrPlayerNotFound
			default:
				return ErrAlreadyAnswered
			}
		})
	if err != nil {
		return nil, err
	}

	out := &AnswerOutcome{Room: room}
	if !room.AllConnected(answered) {
		return out, nil
	}
	return e.openVoting(ctx, code, room)
}

func answered(p models.Player) bool { return p.HasAnswered }
func voted(p models.Player) bool    { return p.HasVoted }
func ready(p models.Player) bool    { return p.IsReady }

// openVoting flips answering to voting. Only the caller whose update applies
// reports PhaseChanged.
func (e *Engine) openVoting(ctx context.Context, code string, fallback *models.Room) (*AnswerOutcome, error) {
	room, err := e.repo.ConditionalUpdate(ctx, code,
		func(r *models.Room) bool {
			return r.GameState == models.StateAnswering && r.AllConnected(answered)
		},
		func(r *models.Room) error {
			for i := range r.Players {
				r.Players[i].HasVoted = false
			}
			r.GameState = models.StateVoting
			return nil
		})
	if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
		return &AnswerOutcome{Room: fallback}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open voting for %s: %w", code, err)
	}

	ballots := make(map[string][]models.AnonymousAnswer, len(room.Players))
	for _, p := range room.Players {
		ballots[p.ID] = e.ShuffledAnswers(room, p.ID)
	}
	e.logger.Info("Voting phase started", zap.String("roomCode", code), zap.Int("round", room.CurrentRound))
	return &AnswerOutcome{Room: room, PhaseChanged: true, Ballots: ballots}, nil
}

// SubmitVote records a vote for the answer written by votedForPlayerID and
// scores the round once every connected player has voted.
func (e *Engine) SubmitVote(ctx context.Context, code, voterID, votedForPlayerID string) (*VoteOutcome, error) {
	if voterID == votedForPlayerID {
		return nil, ErrCannotVoteForSelf
	}
	return e.castVote(ctx, code, voterID, func(round *models.Round) string {
		if round.AnswerBy(votedForPlayerID) == nil {
			return ""
		}
		return votedForPlayerID
	})
}

// SubmitVoteForAnswer is SubmitVote addressed by the ballot's answer id. The
// author is resolved inside the same conditional update.
func (e *Engine) SubmitVoteForAnswer(ctx context.Context, code, voterID, answerID string) (*VoteOutcome, error) {
	return e.castVote(ctx, code, voterID, func(round *models.Round) string {
		if a := round.AnswerByID(answerID); a != nil {
			return a.PlayerID
		}
		return ""
	})
}

// castVote applies one vote. author maps the current round to the targeted
// answer's author, or "" when the target does not exist.
func (e *Engine) castVote(ctx context.Context, code, voterID string, author func(*models.Round) string) (*VoteOutcome, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	target := func(r *models.Room) string {
		round := r.ActiveRound()
		if round == nil {
			return ""
		}
		return author(round)
	}

	room, err := e.update(ctx, code,
		func(r *models.Room) bool {
			p := r.Player(voterID)
			t := target(r)
			return r.GameState == models.StateVoting && p != nil && !p.HasVoted &&
				t != "" && t != voterID
		},
		func(r *models.Room) error {
			round := r.ActiveRound()
			round.Votes = append(round.Votes, models.Vote{VoterID: voterID, VotedForPlayerID: target(r)})
			r.Player(voterID).HasVoted = true
			return nil
		},
		func(r *models.Room) error {
			p := r.Player(voterID)
			switch {
			case r.GameState != models.StateVoting:
				return ErrNotInVotingPhase
			case p == nil:
				return ErrPlayerNotFound
			case p.HasVoted:
				return ErrAlreadyVoted
			case target(r) == voterID:
				return ErrCannotVoteForSelf
			default:
				return ErrInvalidVoteTarget
			}
		})
	if err != nil {
		return nil, err
	}

	if !room.AllConnected(voted) {
		return &VoteOutcome{Room: room}, nil
	}
	return e.closeVoting(ctx, code, room)
}

// closeVoting credits every answer's votes to its author and shows results.
func (e *Engine) closeVoting(ctx context.Context, code string, fallback *models.Room) (*VoteOutcome, error) {
	room, err := e.repo.ConditionalUpdate(ctx, code,
		func(r *models.Room) bool {
			return r.GameState == models.StateVoting && r.AllConnected(voted)
		},
		func(r *models.Room) error {
			round := r.ActiveRound()
			if round == nil {
				return ErrNotInVotingPhase
			}
			for _, v := range round.Votes {
				if p := r.Player(v.VotedForPlayerID); p != nil {
					p.Score++
				}
			}
			r.GameState = models.StateResults
			return nil
		})
	if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
		return &VoteOutcome{Room: fallback}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("close voting for %s: %w", code, err)
	}
	e.logger.Info("Round scored", zap.String("roomCode", code), zap.Int("round", room.CurrentRound))
	return &VoteOutcome{Room: room, PhaseChanged: true, Results: RoundResults(room)}, nil
}

// MarkReady flags playerID as ready on the results screen. When every
// connected player is ready the room either finishes or starts the next round.
// If no question is left for the next round ErrQuestionsExhausted is returned
// and the room stays in results with the ready flag kept.
func (e *Engine) MarkReady(ctx context.Context, code, playerID string) (*ReadyOutcome, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	room, err := e.update(ctx, code,
		func(r *models.Room) bool {
			return r.GameState == models.StateResults && r.Player(playerID) != nil
		},
		func(r *models.Room) error {
			r.Player(playerID).IsReady = true
			return nil
		},
		func(r *models.Room) error {
			if r.GameState != models.StateResults {
				return ErrNotInResultsPhase
			}
			return ErrPlayerNotFound
		})
	if err != nil {
		return nil, err
	}

	if !room.AllConnected(ready) {
		return &ReadyOutcome{Room: room}, nil
	}
	return e.advance(ctx, code, room)
}

// advance finishes the game or deals the next round from the all-ready room.
func (e *Engine) advance(ctx context.Context, code string, room *models.Room) (*ReadyOutcome, error) {
	round := room.CurrentRound
	allReady := func(r *models.Room) bool {
		return r.GameState == models.StateResults && r.CurrentRound == round && r.AllConnected(ready)
	}

	if room.CurrentRound >= room.TotalRounds {
		finished, err := e.repo.ConditionalUpdate(ctx, code, allReady, func(r *models.Room) error {
			r.GameState = models.StateFinished
			return nil
		})
		if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
			return &ReadyOutcome{Room: room}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("finish game %s: %w", code, err)
		}
		if err := e.questions.RecordUsage(ctx, finished.UsedQuestions); err != nil {
			e.logger.Error("Failed to record question usage", zap.String("roomCode", code), zap.Error(err))
		}
		scores := FinalScores(finished)
		out := &ReadyOutcome{Room: finished, Advanced: true, GameOver: true, FinalScores: scores}
		if len(scores) > 0 {
			out.Winner = &scores[0]
		}
		e.logger.Info("Game finished", zap.String("roomCode", code))
		return out, nil
	}

	template, err := e.nextQuestion(ctx, room)
	if err != nil {
		return nil, err
	}
	next, err := e.repo.ConditionalUpdate(ctx, code,
		func(r *models.Room) bool { return allReady(r) && !r.IsUsedQuestion(template) },
		func(r *models.Room) error {
			target := e.chooseTarget(r)
			r.CurrentRound++
			r.Rounds = append(r.Rounds, newRound(template, target))
			r.UsedQuestions = append(r.UsedQuestions, template)
			r.ResetRoundFlags()
			r.GameState = models.StateAnswering
			return nil
		})
	if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
		return &ReadyOutcome{Room: room}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start next round for %s: %w", code, err)
	}
	e.logger.Info("Next round started", zap.String("roomCode", code), zap.Int("round", next.CurrentRound))
	return &ReadyOutcome{Room: next, Advanced: true, CurrentQuestion: CurrentQuestion(next)}, nil
}

// chooseTarget prefers connected players who have not been a target yet and
// falls back to any connected player.
func (e *Engine) chooseTarget(r *models.Room) models.Player {
	targeted := make(map[string]bool, len(r.Rounds))
	for _, round := range r.Rounds {
		targeted[round.TargetPlayerID] = true
	}
	connected := r.ConnectedPlayers()
	var fresh []models.Player
	for _, p := range connected {
		if !targeted[p.ID] {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) > 0 {
		return e.pick(fresh)
	}
	return e.pick(connected)
}

// ResetGame returns the room to the lobby keeping players and host.
func (e *Engine) ResetGame(ctx context.Context, code string) (*models.Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	room, err := e.update(ctx, code, repository.Always,
		func(r *models.Room) error {
			r.Rounds = []models.Round{}
			r.UsedQuestions = []string{}
			r.CurrentRound = 0
			r.TotalRounds = 0
			r.GameState = models.StateWaiting
			for i := range r.Players {
				r.Players[i].Score = 0
			}
			r.ResetRoundFlags()
			return nil
		},
		func(*models.Room) error { return ErrRoomNotFound })
	if err != nil {
		return nil, err
	}
	e.logger.Info("Game reset", zap.String("roomCode", code))
	return room, nil
}

// Settlement reports a phase transition caused by SettlePhase. At most one
// field is set.
type Settlement struct {
	Voting  *AnswerOutcome
	Results *VoteOutcome
	Ready   *ReadyOutcome
}

// SettlePhase re-checks the all-connected thresholds after a player left or
// dropped, so the remaining players are not left waiting on them. It returns
// nil when nothing changed.
func (e *Engine) SettlePhase(ctx context.Context, code string) (*Settlement, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	room, err := e.load(ctx, code)
	if errors.Is(err, ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch room.GameState {
	case models.StateAnswering:
		if !room.AllConnected(answered) {
			return nil, nil
		}
		out, err := e.openVoting(ctx, code, room)
		if err != nil || !out.PhaseChanged {
			return nil, err
		}
		return &Settlement{Voting: out}, nil
	case models.StateVoting:
		if !room.AllConnected(voted) {
			return nil, nil
		}
		out, err := e.closeVoting(ctx, code, room)
		if err != nil || !out.PhaseChanged {
			return nil, err
		}
		return &Settlement{Results: out}, nil
	case models.StateResults:
		if !room.AllConnected(ready) {
			return nil, nil
		}
		out, err := e.advance(ctx, code, room)
		if err != nil || !out.Advanced {
			return nil, err
		}
		return &Settlement{Ready: out}, nil
	}
	return nil, nil
}
