package game

import (
	"sort"

	"whosaidit/models"
	"whosaidit/questions"
)

// RoundResults tallies the current round. Entries are ordered by votes,
// keeping submission order among ties, and every entry at a non-zero maximum
// is marked as a winner.
func RoundResults(room *models.Room) []models.RoundResult {
	round := room.ActiveRound()
	if round == nil {
		return []models.RoundResult{}
	}

	results := make([]models.RoundResult, 0, len(round.Answers))
	for _, a := range round.Answers {
		res := models.RoundResult{
			PlayerID:   a.PlayerID,
			PlayerName: a.PlayerName,
			AnswerText: a.Text,
			Voters:     []string{},
		}
		for _, v := range round.Votes {
			if v.VotedForPlayerID != a.PlayerID {
				continue
			}
			res.Votes++
			name := "Unknown"
			if voter := room.Player(v.VoterID); voter != nil {
				name = voter.Name
			}
			res.Voters = append(res.Voters, name)
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Votes > results[j].Votes
	})
	if len(results) > 0 && results[0].Votes > 0 {
		top := results[0].Votes
		for i := range results {
			results[i].Winner = results[i].Votes == top
		}
	}
	return results
}

// FinalScores ranks players by score, keeping join order among ties.
func FinalScores(room *models.Room) []models.FinalScore {
	players := append([]models.Player(nil), room.Players...)
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	scores := make([]models.FinalScore, len(players))
	for i, p := range players {
		scores[i] = models.FinalScore{Rank: i + 1, PlayerID: p.ID, PlayerName: p.Name, Score: p.Score}
	}
	return scores
}

// CurrentQuestion returns the formatted prompt of the current round, or "".
func CurrentQuestion(room *models.Room) string {
	round := room.ActiveRound()
	if round == nil {
		return ""
	}
	return questions.Format(round.QuestionTemplate, round.TargetPlayerName)
}

// ShuffledAnswers returns the current round's answers without attribution in
// a fresh random order, leaving out excludePlayerID's own answer.
func (e *Engine) ShuffledAnswers(room *models.Room, excludePlayerID string) []models.AnonymousAnswer {
	round := room.ActiveRound()
	if round == nil {
		return []models.AnonymousAnswer{}
	}
	out := make([]models.AnonymousAnswer, 0, len(round.Answers))
	for _, a := range round.Answers {
		if a.PlayerID == excludePlayerID {
			continue
		}
		out = append(out, models.AnonymousAnswer{AnswerID: a.ID, Text: a.Text})
	}
	e.randMu.Lock()
	e.randGen.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	e.randMu.Unlock()
	return out
}
