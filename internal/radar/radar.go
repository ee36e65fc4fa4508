// Package radar is the proximity radar core: it combines a live presence
// feed, the viewer's own location and filter settings into a stable
// nearby list, and publishes the viewer's derived "seen by N others"
// count. It depends only on the Feed and StatsWriter interfaces and runs
// fine against fakes.
package radar

import (
	"context"
	"time"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
)

const (
	// StalenessWindow is how long a record stays visible after its last
	// heartbeat. Readers must treat anything older as absent even if the
	// document still exists.
	StalenessWindow = 10 * time.Minute

	// DefaultScanRangeMeters is the radius used until the viewer picks one.
	DefaultScanRangeMeters = 500

	// SnapshotLimit caps the candidate set a feed delivers per snapshot.
	SnapshotLimit = 100
)

// Query describes what a feed subscription should cover. Feeds are free
// to ignore the center and radius: the contract is a recency-ordered
// bounded candidate set, with distance filtering done by the engine.
type Query struct {
	Lat          float64
	Lng          float64
	RadiusMeters int
}

// SnapshotFunc receives the full current candidate set, never a delta.
type SnapshotFunc func(auras []models.Aura)

// Feed is a live subscription to presence snapshots. The returned stop
// function must be idempotent; snapshots delivered after stop are
// ignored by the engine regardless.
type Feed interface {
	Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (stop func(), err error)
}

// StatsWriter publishes the viewer's derived inRadar count to their own
// presence record. The write must be field-scoped so concurrent interest
// updates from other viewers are not clobbered.
type StatsWriter interface {
	UpdateInRadar(ctx context.Context, uid string, count int) error
}

// Candidate is one nearby broadcaster with the distance computed from
// the viewer's location at snapshot-processing time.
type Candidate struct {
	models.Aura
	DistanceMeters int `json:"dist"`
}

// Update is what the engine pushes to its UI collaborator after each
// recompute: the filtered nearby list plus the viewer's own live stats
// mirrored from their record in the same snapshot.
type Update struct {
	Nearby []Candidate      `json:"nearby"`
	Stats  models.AuraStats `json:"stats"`
}
