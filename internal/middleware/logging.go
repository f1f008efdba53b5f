// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware logs each HTTP request with method, path, duration, and
// remote address.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("http request")
		})
	}
}

// LogWebSocketConnect records an accepted WebSocket upgrade.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr, path string) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"path":   path,
	}).Info("websocket connected")
}

// LogWebSocketDisconnect records the end of a WebSocket session, with the
// exit error when the session did not end cleanly.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr, path string, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"path":   path,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("websocket disconnected")
}
