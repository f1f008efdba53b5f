package lobby

import (
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/models"
)

// guessScore computes the points for a correct guess made elapsed into a
// round of guessSeconds, given how many players guessed correctly earlier.
func guessScore(elapsed time.Duration, guessSeconds uint8, priorCorrect int) uint32 {
	total := int64(guessSeconds) * 1000
	remaining := total - elapsed.Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	score := remaining * config.PerfectGuessScore / total
	if priorCorrect == 0 {
		score += config.FirstCorrectBonus
	}
	return uint32(score) + config.MinimumGuessScore
}

// drawerBonus splits the guessers' combined points across the other players.
// A lone drawer divides by one, not zero.
func drawerBonus(correct map[models.UserID]uint32, playerCount int) uint32 {
	var sum uint32
	for _, pts := range correct {
		sum += pts
	}
	divisor := playerCount - 1
	if divisor < 1 {
		divisor = 1
	}
	return sum / uint32(divisor)
}

// closeThreshold scales the near-miss edit distance with word length.
func closeThreshold(wordLen int) int {
	switch {
	case wordLen <= 4:
		return 1
	case wordLen <= 7:
		return 2
	default:
		return 3
	}
}

// isCloseGuess reports whether a wrong guess was near enough to the word to
// tell the guesser. Callers check exact equality first.
func isCloseGuess(guess, word models.Lowercase) bool {
	d := levenshtein.ComputeDistance(string(guess), string(word))
	return d <= closeThreshold(len(word))
}
