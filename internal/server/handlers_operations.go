package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/battlewithbytes/lxd-console/internal/store"
)

const streamWriteTimeout = 10 * time.Second

// --- Operation history and queue ---

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"operations": []interface{}{}, "total": 0})
		return
	}

	ops, err := s.history.ListOperations(listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ops == nil {
		ops = []*store.OperationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": ops, "total": len(ops)})
}

func (s *Server) handlePendingOperations(w http.ResponseWriter, r *http.Request) {
	pending := s.queue.Pending()
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending, "total": len(pending)})
}

// --- Notifications ---

func (s *Server) handleCurrentNotification(w http.ResponseWriter, r *http.Request) {
	note, ok := s.notify.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"notification": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notification": note})
}

func (s *Server) handleClearNotification(w http.ResponseWriter, r *http.Request) {
	s.notify.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleNotificationHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": []interface{}{}, "total": 0})
		return
	}

	notes, err := s.history.ListNotifications(listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []*store.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notes, "total": len(notes)})
}

// handleNotificationStream pushes the current banner, then every change, as
// JSON text messages until the browser goes away.
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	clearDeadlines(w)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOriginPatterns(r),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The browser never sends; CloseRead cancels ctx when it disconnects.
	ctx := conn.CloseRead(r.Context())
	updates := s.notify.Subscribe(ctx)

	if note, ok := s.notify.Current(); ok {
		if err := writeStream(ctx, conn, note); err != nil {
			return
		}
	}

	for note := range updates {
		if err := writeStream(ctx, conn, note); err != nil {
			return
		}
	}
}

// clearDeadlines lifts the server read and write timeouts, which otherwise
// stay on the hijacked connection and end long-lived websocket sessions.
func clearDeadlines(w http.ResponseWriter) {
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})
}

func writeStream(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
