package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/services"
)

// ProfileHandler serves the persistent identity stored in PostgreSQL.
type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get returns a profile.
// GET /api/profile?uid=...
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	profile, err := h.profiles.Get(ctx, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "profile": profile})
}

// Save creates or updates a profile. A request without a uid creates a
// new identity and returns the generated id.
// PUT /api/profile
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var profile models.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if profile.Nickname == "" {
		writeError(w, http.StatusBadRequest, "nickname is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	uid, err := h.profiles.Save(ctx, profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "uid": uid})
}
