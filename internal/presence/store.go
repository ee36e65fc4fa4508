// Package presence owns the live aura documents: the MongoDB store, the
// snapshot feed the radar engine subscribes to, and the session manager
// that keeps the viewer's own record alive.
package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jayakanthcm/moodcast-backend/internal/geo"
	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/radar"
	"github.com/jayakanthcm/moodcast-backend/internal/services"
)

// Collection is the MongoDB collection holding live auras, one document
// per broadcasting user, keyed by uid.
const Collection = "live_auras"

const defaultVibeColor = "#6366f1"

// Store is the presence document store. Every write stamps lastSeen with
// the server clock (clients never set it) and announces itself on the
// event bus so open feed subscriptions push a fresh snapshot.
type Store struct {
	col *mongo.Collection
	bus *services.Bus
	now func() time.Time
}

func NewStore(db *mongo.Database, bus *services.Bus) *Store {
	return &Store{
		col: db.Collection(Collection),
		bus: bus,
		now: time.Now,
	}
}

// EnsureIndexes configures the lastSeen index backing the recency query.
// Called on startup after Mongo has connected.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "lastSeen", Value: -1}},
		Options: options.Index().SetName("idx_last_seen"),
	})
	return err
}

// Create writes the full aura document, replacing any previous session
// for the same uid so retries stay idempotent. The proximity key and
// lastSeen are assigned here, never trusted from the caller.
func (s *Store) Create(ctx context.Context, aura models.Aura) error {
	if aura.UID == "" {
		return fmt.Errorf("presence: aura uid is required")
	}
	aura.Geohash = geo.ProximityKey(aura.Lat, aura.Lng)
	aura.LastSeen = s.now().UTC()
	if aura.VibeColor == "" {
		aura.VibeColor = defaultVibeColor
	}
	if aura.PulseBPM == 0 {
		aura.PulseBPM = 60
	}

	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": aura.UID}, aura, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("presence: create %s: %w", aura.UID, err)
	}
	s.announce(ctx, "created", aura.UID)
	return nil
}

// UpdateFields applies a partial update. A coordinate change (both lat
// and lng present) recomputes the proximity key, and every patch
// refreshes lastSeen: any write extends liveness.
func (s *Store) UpdateFields(ctx context.Context, uid string, fields bson.M) error {
	updates := bson.M{}
	for k, v := range fields {
		updates[k] = v
	}

	lat, hasLat := fields["lat"].(float64)
	lng, hasLng := fields["lng"].(float64)
	if hasLat && hasLng {
		updates["geohash"] = geo.ProximityKey(lat, lng)
	}
	updates["lastSeen"] = s.now().UTC()

	_, err := s.col.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("presence: update %s: %w", uid, err)
	}
	s.announce(ctx, "updated", uid)
	return nil
}

// Heartbeat refreshes lastSeen and nothing else.
func (s *Store) Heartbeat(ctx context.Context, uid string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{"lastSeen": s.now().UTC()}})
	if err != nil {
		return fmt.Errorf("presence: heartbeat %s: %w", uid, err)
	}
	s.announce(ctx, "heartbeat", uid)
	return nil
}

// Delete removes the aura. Deleting a missing record is not an error, so
// retries and double-stops are harmless.
func (s *Store) Delete(ctx context.Context, uid string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return fmt.Errorf("presence: delete %s: %w", uid, err)
	}
	s.announce(ctx, "deleted", uid)
	return nil
}

// AdjustInterest moves the interested counter by ±1 with a field-scoped
// $inc. Decrements are filtered on a positive counter so the value can
// never go negative, whatever order concurrent toggles land in.
func (s *Store) AdjustInterest(ctx context.Context, uid string, delta int) error {
	if delta != 1 && delta != -1 {
		return fmt.Errorf("presence: interest delta must be +1 or -1, got %d", delta)
	}
	filter := bson.M{"_id": uid}
	if delta < 0 {
		filter["stats.interested"] = bson.M{"$gt": 0}
	}
	_, err := s.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stats.interested": delta}})
	if err != nil {
		return fmt.Errorf("presence: adjust interest %s: %w", uid, err)
	}
	s.announce(ctx, "updated", uid)
	return nil
}

// UpdateInRadar publishes a viewer's self-reported inRadar count. Dot
// notation keeps the write scoped to the one subfield so concurrent
// interest updates are never overwritten. Implements radar.StatsWriter.
func (s *Store) UpdateInRadar(ctx context.Context, uid string, count int) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{"stats.inRadar": count}})
	if err != nil {
		return fmt.Errorf("presence: set inRadar %s: %w", uid, err)
	}
	s.announce(ctx, "updated", uid)
	return nil
}

// Get fetches one aura, nil when absent.
func (s *Store) Get(ctx context.Context, uid string) (*models.Aura, error) {
	var aura models.Aura
	err := s.col.FindOne(ctx, bson.M{"_id": uid}).Decode(&aura)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("presence: get %s: %w", uid, err)
	}
	return &aura, nil
}

// Recent returns the candidate set feeds push: every aura ordered by
// lastSeen descending, capped at the snapshot limit. Distance and
// staleness filtering happen in the radar engine, not here.
func (s *Store) Recent(ctx context.Context) ([]models.Aura, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastSeen", Value: -1}}).
		SetLimit(int64(radar.SnapshotLimit))

	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("presence: recent query: %w", err)
	}
	defer cur.Close(ctx)

	var auras []models.Aura
	for cur.Next(ctx) {
		var a models.Aura
		if err := cur.Decode(&a); err != nil {
			// One bad document must not take the whole snapshot down.
			continue
		}
		auras = append(auras, a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("presence: recent cursor: %w", err)
	}
	return auras, nil
}

func (s *Store) announce(ctx context.Context, op, uid string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishPresence(ctx, services.PresenceEvent{Op: op, UID: uid}); err != nil {
		log.Printf("presence: publish %s event for %s failed: %v", op, uid, err)
	}
}
