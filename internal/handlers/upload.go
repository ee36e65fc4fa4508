package handlers

import (
	"net/http"
	"strings"

	"github.com/jayakanthcm/moodcast-backend/internal/services"
)

// UploadHandler accepts custom aura icon images. Icons may also be plain
// emoji, in which case nothing is uploaded and this endpoint is unused.
type UploadHandler struct {
	icons *services.IconService
}

func NewUploadHandler(icons *services.IconService) *UploadHandler {
	return &UploadHandler{icons: icons}
}

// Icon uploads an icon image and returns its URL.
// POST /api/upload/icon (multipart: uid, file)
func (h *UploadHandler) Icon(w http.ResponseWriter, r *http.Request) {
	if h.icons == nil {
		writeError(w, http.StatusServiceUnavailable, "Icon uploads are not available")
		return
	}

	// 5MB is plenty for an avatar.
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	uid := r.FormValue("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}

	_, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	if ct := fileHeader.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	url, err := h.icons.UploadIconFromHeader(r.Context(), uid, fileHeader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to upload icon")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"url":     url,
	})
}
