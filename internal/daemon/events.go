package daemon

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"lala/internal/logging"
	"lala/internal/progress"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are checked before upgrading.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEvents streams progress events over a websocket. An optional
// file_id query parameter restricts the stream to one file.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && !s.originPermitted(origin) {
		s.writeError(w, http.StatusForbidden, "origin not allowed", "")
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	fileID := strings.TrimSpace(r.URL.Query().Get("file_id"))
	events, unsubscribe := s.daemon.hub.Subscribe()
	defer unsubscribe()

	// The reader only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"),
				time.Now().Add(wsWriteWait))
			return
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if fileID != "" && event.FileID != fileID {
				continue
			}
			if err := s.writeEvent(conn, event); err != nil {
				s.logger.Debug("websocket write failed", logging.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *apiServer) writeEvent(conn *websocket.Conn, event progress.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}

// originPermitted reports whether a browser origin is configured in
// api.allowed_origins. Requests without an Origin header never reach it.
func (s *apiServer) originPermitted(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
