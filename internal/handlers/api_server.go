// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/lobby"
	"github.com/inklobby/inklobby/internal/middleware"
)

// NewRouter assembles the HTTP surface: the lobby-name endpoint, the game
// WebSocket, and a health check, all behind request logging.
func NewRouter(logger *logrus.Logger, reg *lobby.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", PingHandler)
	mux.Handle("/api/random_lobby_name", limitBody(RandomLobbyNameHandler(logger)))
	mux.Handle("/ws/game", GameWSHandler(logger, reg))

	return middleware.LogMiddleware(logger)(mux)
}

// limitBody caps request bodies; oversized reads fail inside the handler.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBytes)
		next.ServeHTTP(w, r)
	})
}
