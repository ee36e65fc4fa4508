package radar

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/jayakanthcm/moodcast-backend/internal/geo"
	"github.com/jayakanthcm/moodcast-backend/internal/models"
)

// subKey identifies a feed subscription. Coordinates are rounded so a
// re-applied, numerically-unchanged location never causes a resubscribe;
// only material movement or a radius change re-keys the subscription.
type subKey struct {
	lat    float64
	lng    float64
	radius int
}

const coordKeyScale = 1e4 // ~11 m buckets

func roundCoord(v float64) float64 {
	return math.Round(v*coordKeyScale) / coordKeyScale
}

// Config assembles an Engine. Feed and ViewerID are required; Stats may
// be nil when the viewer never broadcasts.
type Config struct {
	ViewerID        string
	Feed            Feed
	Stats           StatsWriter
	ScanRangeMeters int
	Seeking         models.Seeking
	MoodFilter      Mood
	Broadcasting    bool

	// OnUpdate receives every recomputed nearby list. Calls are
	// sequential; the engine never invokes it concurrently.
	OnUpdate func(Update)
}

// Mood aliases the model type for filter settings; empty means "all".
type Mood = models.Mood

// Engine is the radar core. All state transitions are serialized behind
// one mutex, mirroring the single-threaded event model the pipeline was
// designed for: a location reading, a feed snapshot, or a settings
// change, whichever arrives first.
type Engine struct {
	ctx      context.Context
	feed     Feed
	stats    StatsWriter
	viewerID string
	onUpdate func(Update)
	now      func() time.Time

	mu           sync.Mutex
	lat, lng     float64
	hasLoc       bool
	radius       int
	seeking      models.Seeking
	moodFilter   Mood
	broadcasting bool

	gen  int
	key  subKey
	stop func()

	lastSnapshot []models.Aura
	hasSnapshot  bool
	nearby       []Candidate
	ownStats     models.AuraStats
	closed       bool
}

// New builds an engine. No subscription is opened until the first
// location arrives; without a location the nearby list stays empty.
func New(ctx context.Context, cfg Config) *Engine {
	radius := cfg.ScanRangeMeters
	if radius <= 0 {
		radius = DefaultScanRangeMeters
	}
	return &Engine{
		ctx:          ctx,
		feed:         cfg.Feed,
		stats:        cfg.Stats,
		viewerID:     cfg.ViewerID,
		onUpdate:     cfg.OnUpdate,
		now:          time.Now,
		radius:       radius,
		seeking:      cfg.Seeking,
		moodFilter:   cfg.MoodFilter,
		broadcasting: cfg.Broadcasting,
	}
}

// SetLocation records the viewer's newest position. The location is held
// in a slot read at snapshot-processing time, so a snapshot arriving
// later is always measured against the freshest coordinates, not the
// ones captured when the subscription was opened.
func (e *Engine) SetLocation(lat, lng float64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.lat, e.lng, e.hasLoc = lat, lng, true
	e.mu.Unlock()
	e.refresh()
}

// SetScanRange changes the radius in meters.
func (e *Engine) SetScanRange(meters int) {
	e.mu.Lock()
	if e.closed || meters <= 0 {
		e.mu.Unlock()
		return
	}
	e.radius = meters
	e.mu.Unlock()
	e.refresh()
}

// SetSeeking replaces the viewer's preference filters.
func (e *Engine) SetSeeking(s models.Seeking) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.seeking = s
	e.mu.Unlock()
	e.refresh()
}

// SetMoodFilter sets the mood filter; empty shows every mood.
func (e *Engine) SetMoodFilter(m Mood) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.moodFilter = m
	e.mu.Unlock()
	e.refresh()
}

// SetBroadcasting toggles the inRadar self-report.
func (e *Engine) SetBroadcasting(on bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.broadcasting = on
	e.mu.Unlock()
	e.refresh()
}

// Nearby returns the latest filtered list, in feed order. The list is
// deliberately not re-sorted by distance: keeping the feed's recency
// order avoids reshuffling the UI on every recompute.
func (e *Engine) Nearby() []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Candidate, len(e.nearby))
	copy(out, e.nearby)
	return out
}

// OwnStats returns the viewer's live stats as of the last snapshot that
// contained their own record.
func (e *Engine) OwnStats() models.AuraStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ownStats
}

// Close tears the engine down. Idempotent; snapshots still in flight are
// dropped by the generation check.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	stop := e.stop
	e.stop = nil
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// refresh reconciles the feed subscription against the current
// (location, radius) key and recomputes the output. Resubscribing only
// happens when the rounded key actually changes.
func (e *Engine) refresh() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if !e.hasLoc {
		e.mu.Unlock()
		return
	}

	desired := subKey{lat: roundCoord(e.lat), lng: roundCoord(e.lng), radius: e.radius}
	if e.stop != nil && desired == e.key {
		// Same subscription; just recompute from the latest snapshot
		// with the latest location and settings.
		upd, report := e.processLocked()
		e.mu.Unlock()
		e.emit(upd, report)
		return
	}

	oldStop := e.stop
	e.stop = nil
	e.gen++
	myGen := e.gen
	e.key = desired
	q := Query{Lat: e.lat, Lng: e.lng, RadiusMeters: e.radius}
	e.mu.Unlock()

	if oldStop != nil {
		oldStop()
	}

	stop, err := e.feed.Subscribe(e.ctx, q, func(auras []models.Aura) {
		e.handleSnapshot(myGen, auras)
	})
	if err != nil {
		log.Printf("radar: subscribe failed for %s: %v", e.viewerID, err)
		return
	}

	e.mu.Lock()
	if e.closed || e.gen != myGen {
		e.mu.Unlock()
		stop()
		return
	}
	e.stop = stop
	e.mu.Unlock()
}

func (e *Engine) handleSnapshot(gen int, auras []models.Aura) {
	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.lastSnapshot = auras
	e.hasSnapshot = true
	upd, report := e.processLocked()
	e.mu.Unlock()
	e.emit(upd, report)
}

// processLocked runs the filter pipeline over the held snapshot:
// self-exclusion, staleness, distance, range, preference, mood. It
// returns the update to emit and, when the viewer is broadcasting and
// the post-distance candidate count moved, a deferred inRadar write.
// Callers hold e.mu.
func (e *Engine) processLocked() (Update, func()) {
	if !e.hasLoc || !e.hasSnapshot {
		e.nearby = nil
		return Update{Nearby: nil, Stats: e.ownStats}, nil
	}

	cutoff := e.now().Add(-StalenessWindow)

	var self *models.Aura
	inRange := make([]Candidate, 0, len(e.lastSnapshot))
	for i := range e.lastSnapshot {
		a := e.lastSnapshot[i]
		if a.UID == e.viewerID {
			self = &a
			continue
		}
		// Missing lastSeen decodes as the zero time and counts as stale.
		if a.LastSeen.Before(cutoff) {
			continue
		}
		if !a.Locatable() {
			continue
		}
		dist := geo.DistanceMeters(e.lat, e.lng, a.Lat, a.Lng)
		if dist > e.radius {
			continue
		}
		inRange = append(inRange, Candidate{Aura: a, DistanceMeters: dist})
	}

	nearby := make([]Candidate, 0, len(inRange))
	for _, c := range inRange {
		if !e.seeking.Matches(&c.Aura) {
			continue
		}
		if e.moodFilter != "" && c.Mood != e.moodFilter {
			continue
		}
		nearby = append(nearby, c)
	}
	e.nearby = nearby

	if self != nil {
		e.ownStats = self.Stats
	}

	var report func()
	if e.broadcasting && e.stats != nil {
		// The count published is "raw candidates within my own distance
		// filter", before preferences. That approximates "people who
		// have me on radar" without computing the mutual intersection;
		// the simplification is user-visible and kept on purpose.
		current := 0
		if self != nil {
			current = self.Stats.InRadar
		}
		if newCount := len(inRange); newCount != current {
			uid := e.viewerID
			stats := e.stats
			report = func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := stats.UpdateInRadar(ctx, uid, newCount); err != nil {
					// Not retried here; the next differing snapshot
					// self-corrects.
					log.Printf("radar: inRadar update failed for %s: %v", uid, err)
				}
			}
		}
	}

	return Update{Nearby: nearby, Stats: e.ownStats}, report
}

func (e *Engine) emit(upd Update, report func()) {
	if report != nil {
		go report()
	}
	if e.onUpdate != nil {
		e.onUpdate(upd)
	}
}
