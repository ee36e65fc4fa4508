package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/services"
)

// ChatHandler is the REST surface for direct messages.
type ChatHandler struct {
	chat *services.ChatService
	bus  *services.Bus
}

func NewChatHandler(chat *services.ChatService, bus *services.Bus) *ChatHandler {
	return &ChatHandler{chat: chat, bus: bus}
}

type sendMessageRequest struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
}

// Send persists a message and fans it out to live sockets.
// POST /api/chat/send
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SenderID == "" || req.RecipientID == "" {
		writeError(w, http.StatusBadRequest, "senderId and recipientId are required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msg, err := h.chat.Send(ctx, req.SenderID, req.RecipientID, req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": msg,
	})
}

// History loads paginated messages between two users.
// GET /api/chat/history?me=...&other=...&before=<RFC3339>&limit=50
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	me := r.URL.Query().Get("me")
	other := r.URL.Query().Get("other")
	if me == "" || other == "" {
		writeError(w, http.StatusBadRequest, "me and other are required")
		return
	}

	limit := int64(50)
	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if parsed, err := strconv.ParseInt(lStr, 10, 64); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var before *time.Time
	if bStr := r.URL.Query().Get("before"); bStr != "" {
		parsed, err := time.Parse(time.RFC3339, bStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = &parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msgs, hasMore, err := h.chat.History(ctx, me, other, before, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": msgs,
		"has_more": hasMore,
	})
}

// Conversations lists the caller's threads, most recent first.
// GET /api/chat/conversations?uid=...
func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	convs, err := h.chat.Conversations(ctx, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load conversations")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"conversations": convs,
	})
}
