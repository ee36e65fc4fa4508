// Package location turns a raw positioning capability into a
// jitter-suppressed stream of viewer coordinates.
package location

import (
	"context"
	"errors"
	"sync"

	"github.com/jayakanthcm/moodcast-backend/internal/geo"
)

// ErrNoReading is returned by Current before the first fix arrives. It is
// distinct from a watch failure, which Current surfaces as its own error.
var ErrNoReading = errors.New("location: no reading yet")

// Reading is a single positioning fix.
type Reading struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Source is the platform positioning capability: a continuous watch that
// invokes fn for each fix and errFn on failures until stop is called.
// stop must be safe to call more than once.
type Source interface {
	Watch(ctx context.Context, fn func(Reading), errFn func(error)) (stop func(), err error)
}

// DefaultMinDisplacementMeters is the default movement threshold below
// which readings are treated as GPS jitter and suppressed.
const DefaultMinDisplacementMeters = 5.0

// Tracker consumes a Source and emits readings that moved at least the
// displacement threshold from the previously emitted one. The last good
// reading and the last watch error are kept separately so callers can
// tell "no reading yet" apart from "reading failed".
type Tracker struct {
	minDisplacement float64
	onReading       func(Reading)

	mu       sync.Mutex
	cur      *Reading
	watchErr error
	stop     func()
	stopped  bool
}

// NewTracker builds a tracker. onReading is invoked for every accepted
// reading; pass the threshold 0 to disable jitter suppression.
func NewTracker(minDisplacementMeters float64, onReading func(Reading)) *Tracker {
	return &Tracker{
		minDisplacement: minDisplacementMeters,
		onReading:       onReading,
	}
}

// Start begins watching src. It may only be called once per tracker.
func (t *Tracker) Start(ctx context.Context, src Source) error {
	stop, err := src.Watch(ctx, t.handleReading, t.handleError)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		stop()
		return nil
	}
	t.stop = stop
	t.mu.Unlock()
	return nil
}

// Current returns the most recent accepted reading. Before the first fix
// it returns ErrNoReading, unless the watch has failed, in which case the
// watch error is returned instead.
func (t *Tracker) Current() (Reading, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur != nil {
		return *t.cur, nil
	}
	if t.watchErr != nil {
		return Reading{}, t.watchErr
	}
	return Reading{}, ErrNoReading
}

// Stop tears down the watch. Idempotent; readings delivered after Stop
// are dropped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (t *Tracker) handleReading(r Reading) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.cur != nil && t.minDisplacement > 0 {
		moved := geo.DisplacementMeters(t.cur.Lat, t.cur.Lng, r.Lat, r.Lng)
		if moved < t.minDisplacement {
			t.mu.Unlock()
			return
		}
	}
	t.cur = &r
	// A good fix clears a previous failure.
	t.watchErr = nil
	emit := t.onReading
	t.mu.Unlock()

	if emit != nil {
		emit(r)
	}
}

func (t *Tracker) handleError(err error) {
	t.mu.Lock()
	if !t.stopped {
		t.watchErr = err
	}
	t.mu.Unlock()
}
