package models

// GuessType discriminates the chat/system lines in the guess log.
type GuessType string

const (
	GuessSystem       GuessType = "system"
	GuessHelp         GuessType = "help"
	GuessMessage      GuessType = "message"
	GuessNowChoosing  GuessType = "now_choosing"
	GuessNowDrawing   GuessType = "now_drawing"
	GuessGuess        GuessType = "guess"
	GuessCloseGuess   GuessType = "close_guess"
	GuessCorrect      GuessType = "correct"
	GuessEarnedPoints GuessType = "earned_points"
	GuessTimeExpired  GuessType = "time_expired"
	GuessGameOver     GuessType = "game_over"
	GuessFinalScore   GuessType = "final_score"
)

// Guess is one line of the chat/event feed. The lobby retains the full
// ordered log to replay to joiners.
type Guess struct {
	Type   GuessType `json:"type"`
	User   UserID    `json:"user,omitempty"`
	Text   string    `json:"text,omitempty"`
	Points uint32    `json:"points,omitempty"`
	Rank   int       `json:"rank,omitempty"`
}

// System carries server-generated text (errors, notices).
func System(text string) Guess { return Guess{Type: GuessSystem, Text: text} }

// Help tells the client to render the command help block.
func Help() Guess { return Guess{Type: GuessHelp} }

// Message is ordinary chat.
func Message(user UserID, text string) Guess {
	return Guess{Type: GuessMessage, User: user, Text: text}
}

// NowChoosing announces the player picking the next word.
func NowChoosing(user UserID) Guess { return Guess{Type: GuessNowChoosing, User: user} }

// NowDrawing announces the drawer of the new round.
func NowDrawing(user UserID) Guess { return Guess{Type: GuessNowDrawing, User: user} }

// PlayerGuess is a wrong guess, visible to everyone.
func PlayerGuess(user UserID, text string) Guess {
	return Guess{Type: GuessGuess, User: user, Text: text}
}

// CloseGuess tells only the guesser their guess nearly matched.
func CloseGuess(text string) Guess { return Guess{Type: GuessCloseGuess, Text: text} }

// Correct announces a correct guess without revealing the word.
func Correct(user UserID) Guess { return Guess{Type: GuessCorrect, User: user} }

// EarnedPoints reports a player's score delta at round end.
func EarnedPoints(user UserID, points uint32) Guess {
	return Guess{Type: GuessEarnedPoints, User: user, Points: points}
}

// TimeExpired reveals the word after the round timer fires.
func TimeExpired(word Lowercase) Guess {
	return Guess{Type: GuessTimeExpired, Text: string(word)}
}

// GameOver marks the end of the final round.
func GameOver() Guess { return Guess{Type: GuessGameOver} }

// FinalScore is one leaderboard line. Equal scores share a rank.
func FinalScore(rank int, user UserID, score uint32) Guess {
	return Guess{Type: GuessFinalScore, Rank: rank, User: user, Points: score}
}
