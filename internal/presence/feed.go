package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/radar"
	"github.com/jayakanthcm/moodcast-backend/internal/services"
)

// refreshInterval is the fallback re-query cadence for when no presence
// event arrives; it also sweeps out records that went stale with no
// write to announce it.
const refreshInterval = 30 * time.Second

// snapshots is the slice of the store a Feed needs; *Store satisfies it.
type snapshots interface {
	Recent(ctx context.Context) ([]models.Aura, error)
}

// Feed implements radar.Feed on top of the store and the event bus. Each
// subscription pushes a full recency-ordered snapshot immediately, then
// again after every presence event and on a periodic refresh tick.
// Snapshots are full-state pushes, never deltas.
type Feed struct {
	store snapshots
	bus   *services.Bus
}

func NewFeed(store *Store, bus *services.Bus) *Feed {
	return &Feed{store: store, bus: bus}
}

// Subscribe implements radar.Feed. The query's center and radius are
// accepted for interface compatibility but not used: the candidate set
// is bounded by recency and filtered by distance downstream. The
// returned stop is idempotent; a snapshot already in flight when stop is
// called may still be delivered once, which subscribers must tolerate.
func (f *Feed) Subscribe(ctx context.Context, _ radar.Query, fn radar.SnapshotFunc) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	// Coalescing kick channel: bursts of presence events collapse into
	// one re-query.
	kick := make(chan struct{}, 1)
	unsubBus := func() {}
	if f.bus != nil {
		unsubBus = f.bus.SubscribePresence(func(services.PresenceEvent) {
			select {
			case kick <- struct{}{}:
			default:
			}
		})
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			unsubBus()
			cancel()
		})
	}

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		push := func() {
			qctx, qcancel := context.WithTimeout(subCtx, 5*time.Second)
			auras, err := f.store.Recent(qctx)
			qcancel()
			if err != nil {
				if subCtx.Err() == nil {
					log.Printf("presence: feed query failed: %v", err)
				}
				return
			}
			if subCtx.Err() != nil {
				return
			}
			fn(auras)
		}

		push()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-kick:
				push()
			case <-ticker.C:
				push()
			}
		}
	}()

	return stop, nil
}
