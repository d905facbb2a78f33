package diag

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The diagnostics panel is served from arbitrary dashboard origins;
	// the surface is read-only stats, so cross-origin reads are accepted.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteTimeout = 5 * time.Second
	wsPushInterval = time.Second
)

// handleWS upgrades the connection and pushes a stats snapshot once per
// second until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	s.logger.Debug("diagnostics session opened",
		"session_id", sessionID, "remote", r.RemoteAddr)

	// Reader goroutine: the client sends nothing we care about, but reads
	// must be pumped to process control frames and detect closure.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		conn.Close()
		s.logger.Debug("diagnostics session closed", "session_id", sessionID)
	}()

	limiter := rate.NewLimiter(rate.Every(wsPushInterval), 1)
	ctx := r.Context()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-done:
			return
		default:
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(s.core.Stats()); err != nil {
			return
		}
	}
}
