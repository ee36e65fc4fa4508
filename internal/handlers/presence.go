package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/presence"
)

// patchableFields is the whitelist of aura fields a client may patch
// directly. lastSeen and geohash are always server-derived; stats only
// move through the interest/inRadar endpoints.
var patchableFields = map[string]bool{
	"nickname":      true,
	"icon":          true,
	"mood":          true,
	"statusMessage": true,
	"vibeColor":     true,
	"pulseBPM":      true,
	"youtubeUrl":    true,
	"lat":           true,
	"lng":           true,
	"ageRange":      true,
	"gender":        true,
	"status":        true,
	"seeking":       true,
}

// PresenceHandler exposes the aura session lifecycle over REST for
// clients that do not hold a radar WebSocket open.
type PresenceHandler struct {
	store *presence.Store
}

func NewPresenceHandler(store *presence.Store) *PresenceHandler {
	return &PresenceHandler{store: store}
}

// Start creates (or replaces) the caller's live aura.
// POST /api/presence
func (h *PresenceHandler) Start(w http.ResponseWriter, r *http.Request) {
	var aura models.Aura
	if err := json.NewDecoder(r.Body).Decode(&aura); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if aura.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}
	if !aura.Locatable() {
		writeError(w, http.StatusBadRequest, "a resolved location is required to broadcast")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Create(ctx, aura); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start broadcasting")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
}

// Heartbeat refreshes the caller's lastSeen.
// POST /api/presence/heartbeat?uid=...
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Heartbeat(ctx, uid); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to heartbeat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type patchRequest struct {
	UID    string                 `json:"uid"`
	Fields map[string]interface{} `json:"fields"`
}

// Patch applies a partial update to the caller's aura. Coordinate
// changes recompute the proximity key in the store; every patch also
// refreshes lastSeen.
// PATCH /api/presence
func (h *PresenceHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	fields := bson.M{}
	for k, v := range req.Fields {
		if patchableFields[k] {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no patchable fields provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.UpdateFields(ctx, req.UID, fields); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update aura")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Stop deletes the caller's aura. Deleting an absent aura succeeds, so
// retries from closing clients are harmless.
// DELETE /api/presence?uid=...
func (h *PresenceHandler) Stop(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Delete(ctx, uid); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to stop broadcasting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Get returns one live aura (used for self-monitoring stats).
// GET /api/presence?uid=...
func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	aura, err := h.store.Get(ctx, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load aura")
		return
	}
	if aura == nil {
		writeError(w, http.StatusNotFound, "Not broadcasting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "aura": aura})
}

type interestRequest struct {
	TargetUID string `json:"targetUid"`
	Delta     int    `json:"delta"`
}

// Interest applies a ±1 interested toggle to another broadcaster.
// POST /api/presence/interest
func (h *PresenceHandler) Interest(w http.ResponseWriter, r *http.Request) {
	var req interestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TargetUID == "" {
		writeError(w, http.StatusBadRequest, "targetUid is required")
		return
	}
	if req.Delta != 1 && req.Delta != -1 {
		writeError(w, http.StatusBadRequest, "delta must be +1 or -1")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.AdjustInterest(ctx, req.TargetUID, req.Delta); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update interest")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
