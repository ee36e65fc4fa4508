package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jayakanthcm/moodcast-backend/internal/location"
	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/presence"
	"github.com/jayakanthcm/moodcast-backend/internal/radar"
)

var radarUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// radarClientFrame is what the client sends over the radar socket.
type radarClientFrame struct {
	Type string `json:"type"` // "location", "location_error", "settings", "start", "patch", "stop", "ping"

	// location
	Lat float64 `json:"lat,omitempty"`
	Lng float64 `json:"lng,omitempty"`

	// location_error
	Message string `json:"message,omitempty"`

	// settings
	ScanRange    *int            `json:"scanRange,omitempty"`
	Seeking      *models.Seeking `json:"seeking,omitempty"`
	MoodFilter   *string         `json:"moodFilter,omitempty"`
	Broadcasting *bool           `json:"broadcasting,omitempty"`

	// start
	Aura *models.Aura `json:"aura,omitempty"`

	// patch
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// radarServerFrame is what the server pushes back.
type radarServerFrame struct {
	Type   string            `json:"type"` // "radar", "error", "pong"
	Nearby []radar.Candidate `json:"nearby,omitempty"`
	Stats  *models.AuraStats `json:"stats,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// RadarHandler runs one radar engine per connected viewer. The client
// streams location fixes and setting changes; the server streams the
// recomputed nearby list and the viewer's own live stats. Starting a
// broadcast over this socket also ties the aura session to the socket
// lifetime, so closing the tab stops the heartbeat and best-effort
// deletes the record.
type RadarHandler struct {
	feed  *presence.Feed
	store *presence.Store
}

func NewRadarHandler(feed *presence.Feed, store *presence.Store) *RadarHandler {
	return &RadarHandler{feed: feed, store: store}
}

// Serve handles GET /ws/radar?uid=...
func (h *RadarHandler) Serve(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "uid is required", http.StatusBadRequest)
		return
	}

	conn, err := radarUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Writes to a gorilla connection must not interleave.
	var writeMu sync.Mutex
	send := func(frame radarServerFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			cancel()
		}
	}

	engine := radar.New(ctx, radar.Config{
		ViewerID: uid,
		Feed:     h.feed,
		Stats:    h.store,
		OnUpdate: func(upd radar.Update) {
			stats := upd.Stats
			send(radarServerFrame{Type: "radar", Nearby: upd.Nearby, Stats: &stats})
		},
	})
	defer engine.Close()

	// Client-reported fixes flow through the tracker so GPS jitter is
	// suppressed before it can churn the engine's subscription key.
	source := location.NewPushSource()
	tracker := location.NewTracker(location.DefaultMinDisplacementMeters, func(reading location.Reading) {
		engine.SetLocation(reading.Lat, reading.Lng)
	})
	if err := tracker.Start(ctx, source); err != nil {
		send(radarServerFrame{Type: "error", Error: "failed to start location tracking"})
		return
	}
	defer tracker.Stop()

	// A session is created per "start" frame; stopping and starting
	// again on the same socket gets a fresh one.
	var session *presence.Session
	defer func() {
		if session != nil {
			session.Stop()
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

		var frame radarClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "location":
			source.Offer(location.Reading{Lat: frame.Lat, Lng: frame.Lng})
		case "location_error":
			// The client could not resolve a position; keep the last
			// known fix but record the failure state.
			source.Fail(errors.New(frame.Message))
		case "settings":
			if frame.ScanRange != nil {
				engine.SetScanRange(*frame.ScanRange)
			}
			if frame.Seeking != nil {
				engine.SetSeeking(*frame.Seeking)
			}
			if frame.MoodFilter != nil {
				engine.SetMoodFilter(models.Mood(*frame.MoodFilter))
			}
			if frame.Broadcasting != nil {
				engine.SetBroadcasting(*frame.Broadcasting)
			}
		case "start":
			if frame.Aura == nil {
				send(radarServerFrame{Type: "error", Error: "start requires an aura"})
				continue
			}
			if session != nil {
				session.Stop()
			}
			session = presence.NewSession(h.store, uid)
			if err := session.Start(ctx, *frame.Aura); err != nil {
				log.Printf("radar_ws: session start for %s failed: %v", uid, err)
				send(radarServerFrame{Type: "error", Error: "failed to start broadcasting"})
				continue
			}
			engine.SetBroadcasting(true)
		case "patch":
			fields := bson.M{}
			for k, v := range frame.Fields {
				if patchableFields[k] {
					fields[k] = v
				}
			}
			if len(fields) == 0 || session == nil {
				continue
			}
			if err := session.Patch(ctx, fields); err != nil {
				log.Printf("radar_ws: patch for %s failed: %v", uid, err)
			}
		case "stop":
			engine.SetBroadcasting(false)
			if session != nil {
				session.Stop()
				session = nil
			}
		case "ping":
			send(radarServerFrame{Type: "pong"})
		}
	}
}
