// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/inklobby/inklobby/internal/models"
	"github.com/inklobby/inklobby/internal/words"
)

// RandomLobbyNameResponse is the body of POST /api/random_lobby_name.
type RandomLobbyNameResponse struct {
	Lobby models.LobbyName `json:"lobby"`
}

// RandomLobbyNameHandler mints a fresh three-word lobby name. The name is
// only a suggestion; the lobby itself is created on first join.
func RandomLobbyNameHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(RandomLobbyNameResponse{Lobby: words.RandomLobbyName()}); err != nil {
			logger.Warnf("write random_lobby_name response: %v", err)
		}
	}
}

// PingHandler answers health checks.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
