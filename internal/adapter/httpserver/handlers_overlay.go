package httpserver

import (
	"net/http"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerOverlayRoutes() {
	if s.websocketHandler == nil {
		return
	}
	s.echo.GET("/connection/websocket", echo.WrapHandler(centrifugeAuthMiddleware(s.websocketHandler)))
}

func centrifugeAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session parameter", http.StatusBadRequest)
			return
		}

		if _, err := uuid.Parse(sessionID); err != nil {
			http.Error(w, "invalid session ID", http.StatusBadRequest)
			return
		}

		// The session ID doubles as the Centrifuge user ID. OnConnecting checks
		// that the session is mounted and subscribes the client to its channel.
		cred := &centrifuge.Credentials{UserID: sessionID}
		newCtx := centrifuge.SetCredentials(r.Context(), cred)
		r = r.WithContext(newCtx)

		next.ServeHTTP(w, r)
	})
}
