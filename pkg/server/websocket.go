package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prathamdby/pi-mono/pkg/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local tool; origin checks are the deployment's problem.
	},
}

func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	sess, err := s.manager.LoadSession(id)
	if err != nil {
		slog.Error("Failed to load session", "id", id, "error", err)
		ws.WriteJSON(map[string]string{"error": "Session not found"})
		return
	}
	defer sess.Close()

	done := make(chan struct{})
	updates := s.manager.Subscribe()

	// Track sent entry IDs so reconnect-free resyncs stay incremental.
	sentIDs := make(map[string]bool)

	// Initial sync: full current context.
	if err := s.syncSession(ws, sess, sentIDs); err != nil {
		slog.Error("Failed initial sync", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer loop
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case eventID := <-updates:
				if eventID == id {
					if err := sess.Refresh(); err != nil {
						slog.Error("Failed to refresh session", "error", err)
						return
					}
					if err := s.syncSession(ws, sess, sentIDs); err != nil {
						slog.Error("Failed resync", "error", err)
						return
					}
				}
			case <-ticker.C:
				// Keepalive
			}
		}
	}()

	// Reader loop
	for {
		var msg struct {
			Content string `json:"content"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			slog.Error("WebSocket read error", "error", err)
			break
		}

		if msg.Content != "" {
			// Append triggers a manager event; the writer loop picks it up.
			sess.AppendMessage(store.RoleUser, store.TextBlocks(msg.Content))
		}
	}

	close(done)
	wg.Wait()
}

func (s *Server) syncSession(ws *websocket.Conn, sess store.Session, sentIDs map[string]bool) error {
	entries, err := sess.GetContext()
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !sentIDs[e.ID] {
			if err := ws.WriteJSON(e); err != nil {
				return err
			}
			sentIDs[e.ID] = true
		}
	}
	return nil
}
