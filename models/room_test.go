package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomInRound(state GameState) *Room {
	room := NewRoom("ABC123", Player{ID: "p1", Name: "Alice", IsConnected: true}, time.Now())
	room.Players = append(room.Players,
		Player{ID: "p2", Name: "Bob", IsConnected: true, HasAnswered: true},
		Player{ID: "p3", Name: "Carol", IsConnected: true})
	room.GameState = state
	room.CurrentRound = 1
	room.TotalRounds = 3
	room.Rounds = []Round{{
		QuestionTemplate: "What would {name} do?",
		TargetPlayerID:   "p3",
		TargetPlayerName: "Carol",
		Answers: []Answer{
			{ID: "a1", PlayerID: "p1", PlayerName: "Alice", Text: "secret from alice"},
			{ID: "a2", PlayerID: "p2", PlayerName: "Bob", Text: "secret from bob"},
		},
		Votes: []Vote{{VoterID: "p1", VotedForPlayerID: "p2"}},
	}}
	return room
}

func TestPublicView_HidesCurrentRoundWhileInPlay(t *testing.T) {
	for _, state := range []GameState{StateAnswering, StateVoting} {
		t.Run(string(state), func(t *testing.T) {
			room := roomInRound(state)
			view := room.PublicView()

			require.Len(t, view.Rounds, 1)
			assert.Empty(t, view.Rounds[0].Answers)
			assert.Empty(t, view.Rounds[0].Votes)
			assert.Equal(t, "Carol", view.Rounds[0].TargetPlayerName)
			assert.True(t, view.Player("p2").HasAnswered)

			raw, err := json.Marshal(view)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "secret from")
			assert.Contains(t, string(raw), `"answers":[]`)

			// 元のルームは変更されない
			assert.Len(t, room.Rounds[0].Answers, 2)
		})
	}
}

func TestPublicView_ShowsEverythingAfterVoting(t *testing.T) {
	for _, state := range []GameState{StateResults, StateFinished} {
		view := roomInRound(state).PublicView()
		assert.Len(t, view.Rounds[0].Answers, 2, string(state))
		assert.Len(t, view.Rounds[0].Votes, 1, string(state))
	}
	var nilRoom *Room
	assert.Nil(t, nilRoom.PublicView())
}

func TestRound_AnswerByID(t *testing.T) {
	round := roomInRound(StateVoting).Rounds[0]
	require.NotNil(t, round.AnswerByID("a2"))
	assert.Equal(t, "p2", round.AnswerByID("a2").PlayerID)
	assert.Nil(t, round.AnswerByID("p2"))
	assert.Nil(t, round.AnswerByID(""))
}
