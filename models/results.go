package models

// RoundResult は1つの回答に対する集計結果
type RoundResult struct {
	PlayerID   string   `json:"playerId"`
	PlayerName string   `json:"playerName"`
	AnswerText string   `json:"answerText"`
	Votes      int      `json:"votes"`
	Voters     []string `json:"voters"`
	Winner     bool     `json:"winner"`
}

// FinalScore is the per-player line of the game-over board.
type FinalScore struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// AnonymousAnswer is an answer as shown to voters. AnswerID is the vote
// target; nothing in it leads back to the author.
type AnonymousAnswer struct {
	AnswerID string `json:"answerId"`
	Text     string `json:"text"`
}
