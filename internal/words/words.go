// Package words serves the embedded word lists: drawable game words and the
// short common words used to mint lobby names.
package words

import (
	_ "embed"
	"math/rand/v2"
	"strings"

	"github.com/inklobby/inklobby/internal/models"
)

//go:embed game.txt
var gameRaw string

//go:embed common.txt
var commonRaw string

var (
	game   = splitList(gameRaw)
	common = splitList(commonRaw)
)

func splitList(raw string) []models.Lowercase {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	out := make([]models.Lowercase, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, models.Lowercase(line))
		}
	}
	return out
}

// Choose samples n distinct game words.
func Choose(n int) []models.Lowercase {
	if n > len(game) {
		n = len(game)
	}
	picks := rand.Perm(len(game))[:n]
	out := make([]models.Lowercase, n)
	for i, idx := range picks {
		out[i] = game[idx]
	}
	return out
}

// RandomLobbyName concatenates three title-cased common words.
func RandomLobbyName() models.LobbyName {
	var b strings.Builder
	for _, idx := range rand.Perm(len(common))[:3] {
		word := string(common[idx])
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	return models.LobbyName(b.String())
}
