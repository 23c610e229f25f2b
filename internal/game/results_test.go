package game_test

import (
	"testing"
	"time"

	"whosaidit/internal/game"
	"whosaidit/models"
	"whosaidit/questions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomWithVotes(votes []models.Vote) *models.Room {
	room := models.NewRoom("ABC123", models.Player{ID: "p1", Name: "P1", IsConnected: true}, time.Now())
	for _, p := range []models.Player{{ID: "p2", Name: "P2"}, {ID: "p3", Name: "P3"}, {ID: "p4", Name: "P4"}} {
		room.Players = append(room.Players, p)
	}
	room.GameState = models.StateResults
	room.CurrentRound = 1
	room.TotalRounds = 4
	round := models.Round{QuestionTemplate: "Who is {name}?", TargetPlayerID: "p2", TargetPlayerName: "P2", Votes: votes}
	for _, p := range room.Players {
		round.Answers = append(round.Answers, models.Answer{PlayerID: p.ID, PlayerName: p.Name, Text: "by " + p.Name})
	}
	room.Rounds = []models.Round{round}
	return room
}

func TestRoundResults_JointWinners(t *testing.T) {
	room := roomWithVotes([]models.Vote{
		{VoterID: "p1", VotedForPlayerID: "p2"},
		{VoterID: "p2", VotedForPlayerID: "p1"},
		{VoterID: "p3", VotedForPlayerID: "p2"},
		{VoterID: "p4", VotedForPlayerID: "p1"},
	})

	results := game.RoundResults(room)
	require.Len(t, results, 4)
	// ties keep submission order
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, []string{results[0].PlayerID, results[1].PlayerID, results[2].PlayerID, results[3].PlayerID})
	assert.True(t, results[0].Winner)
	assert.True(t, results[1].Winner)
	assert.False(t, results[2].Winner)
	assert.Equal(t, []string{"P2", "P4"}, results[0].Voters)
}

func TestRoundResults_NoVotesNoWinner(t *testing.T) {
	results := game.RoundResults(roomWithVotes(nil))
	require.Len(t, results, 4)
	for _, r := range results {
		assert.False(t, r.Winner)
		assert.Equal(t, 0, r.Votes)
		assert.Empty(t, r.Voters)
	}
}

func TestRoundResults_UnknownVoter(t *testing.T) {
	results := game.RoundResults(roomWithVotes([]models.Vote{{VoterID: "gone", VotedForPlayerID: "p3"}}))
	assert.Equal(t, "p3", results[0].PlayerID)
	assert.Equal(t, []string{"Unknown"}, results[0].Voters)
}

func TestRoundResults_BeforeStart(t *testing.T) {
	room := models.NewRoom("ABC123", models.Player{ID: "p1", Name: "P1"}, time.Now())
	assert.Empty(t, game.RoundResults(room))
	assert.Equal(t, "", game.CurrentQuestion(room))
}

func TestFinalScores(t *testing.T) {
	room := roomWithVotes(nil)
	room.Players[0].Score = 1
	room.Players[1].Score = 4
	room.Players[2].Score = 1
	room.Players[3].Score = 2

	scores := game.FinalScores(room)
	require.Len(t, scores, 4)
	assert.Equal(t, models.FinalScore{Rank: 1, PlayerID: "p2", PlayerName: "P2", Score: 4}, scores[0])
	assert.Equal(t, "p4", scores[1].PlayerID)
	assert.Equal(t, "p1", scores[2].PlayerID)
	assert.Equal(t, "p3", scores[3].PlayerID)
	assert.Equal(t, 4, scores[3].Rank)
}

func TestCurrentQuestion(t *testing.T) {
	room := roomWithVotes(nil)
	assert.Equal(t, "Who is P2?", game.CurrentQuestion(room))
}

func TestShuffledAnswers(t *testing.T) {
	f := newFixture(t, questions.DefaultTemplates)
	room := roomWithVotes(nil)

	answers := f.engine.ShuffledAnswers(room, "p3")
	require.Len(t, answers, 3)
	ids := []string{}
	for _, a := range answers {
		ids = append(ids, a.PlayerID)
	}
	assert.ElementsMatch(t, []string{"p1", "p2", "p4"}, ids)
}
