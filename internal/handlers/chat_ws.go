package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/services"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// chatClientFrame represents messages coming from the frontend over WebSocket.
type chatClientFrame struct {
	Type string `json:"type"` // "message", "typing_start", "typing_stop", "ping"
	Text string `json:"text,omitempty"`
}

// ServeWS handles realtime direct-message chat over WebSocket. Each
// connection is bound to a single conversation via the uid and peer
// query parameters; events published by either side (on any instance)
// arrive through the Redis-backed bus.
// GET /ws/chat?uid=...&peer=...
func (h *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	peer := r.URL.Query().Get("peer")
	if uid == "" || peer == "" {
		http.Error(w, "uid and peer are required", http.StatusBadRequest)
		return
	}
	conversationID := models.ConversationID(uid, peer)

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventsCh, unsubscribe := h.bus.SubscribeConversation(conversationID)
	defer unsubscribe()

	// Writer goroutine: forward bus events to this connection.
	go func() {
		for evt := range eventsCh {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				cancel()
				return
			}
		}
	}()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var frame chatClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "message":
			if frame.Text == "" {
				continue
			}
			sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := h.chat.Send(sctx, uid, peer, frame.Text)
			scancel()
			if err != nil {
				log.Printf("chat_ws: send in %s failed: %v", conversationID, err)
			}
		case "typing_start", "typing_stop":
			_ = h.bus.PublishChat(ctx, services.ChatEvent{
				Type:           frame.Type,
				ConversationID: conversationID,
				SenderID:       uid,
				Timestamp:      time.Now().UTC(),
			})
		case "ping":
			// Read deadline already extended above.
		}
	}
}
