package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/jayakanthcm/moodcast-backend/internal/handlers"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Presence *handlers.PresenceHandler
	Radar    *handlers.RadarHandler
	Chat     *handlers.ChatHandler
	Profile  *handlers.ProfileHandler
	Upload   *handlers.UploadHandler
}

func SetupRoutes(r *chi.Mux, h Handlers) {
	// Presence (live aura) lifecycle
	r.Post("/api/presence", h.Presence.Start)
	r.Get("/api/presence", h.Presence.Get)
	r.Patch("/api/presence", h.Presence.Patch)
	r.Delete("/api/presence", h.Presence.Stop)
	r.Post("/api/presence/heartbeat", h.Presence.Heartbeat)
	r.Post("/api/presence/interest", h.Presence.Interest)

	// Persistent profiles
	r.Get("/api/profile", h.Profile.Get)
	r.Put("/api/profile", h.Profile.Save)

	// Icon uploads
	r.Post("/api/upload/icon", h.Upload.Icon)

	// Direct messages
	r.Post("/api/chat/send", h.Chat.Send)
	r.Get("/api/chat/history", h.Chat.History)
	r.Get("/api/chat/conversations", h.Chat.Conversations)

	// WebSocket gateways
	r.Get("/ws/radar", h.Radar.Serve)
	r.Get("/ws/chat", h.Chat.ServeWS)
}
