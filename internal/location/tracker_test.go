package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerEmitsFirstReading(t *testing.T) {
	var emitted []Reading
	tr := NewTracker(DefaultMinDisplacementMeters, func(r Reading) {
		emitted = append(emitted, r)
	})
	src := NewPushSource()
	require.NoError(t, tr.Start(context.Background(), src))
	defer tr.Stop()

	_, err := tr.Current()
	assert.ErrorIs(t, err, ErrNoReading)

	src.Offer(Reading{Lat: 40, Lng: -74})
	require.Len(t, emitted, 1)

	cur, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, Reading{Lat: 40, Lng: -74}, cur)
}

func TestTrackerSuppressesJitter(t *testing.T) {
	var emitted []Reading
	tr := NewTracker(5, func(r Reading) {
		emitted = append(emitted, r)
	})
	src := NewPushSource()
	require.NoError(t, tr.Start(context.Background(), src))
	defer tr.Stop()

	src.Offer(Reading{Lat: 40, Lng: -74})
	// ~1 m north: below the 5 m threshold, dropped.
	src.Offer(Reading{Lat: 40.00001, Lng: -74})
	assert.Len(t, emitted, 1)

	// ~11 m north: accepted.
	src.Offer(Reading{Lat: 40.0001, Lng: -74})
	require.Len(t, emitted, 2)
	assert.Equal(t, Reading{Lat: 40.0001, Lng: -74}, emitted[1])

	// Current reflects the last accepted fix, not the dropped one.
	cur, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, Reading{Lat: 40.0001, Lng: -74}, cur)
}

func TestTrackerZeroThresholdDisablesSuppression(t *testing.T) {
	var emitted []Reading
	tr := NewTracker(0, func(r Reading) {
		emitted = append(emitted, r)
	})
	src := NewPushSource()
	require.NoError(t, tr.Start(context.Background(), src))
	defer tr.Stop()

	src.Offer(Reading{Lat: 40, Lng: -74})
	src.Offer(Reading{Lat: 40, Lng: -74})
	assert.Len(t, emitted, 2)
}

func TestTrackerWatchErrorSurfacedUntilNextGoodFix(t *testing.T) {
	tr := NewTracker(5, nil)
	src := NewPushSource()
	require.NoError(t, tr.Start(context.Background(), src))
	defer tr.Stop()

	watchErr := errors.New("permission denied")
	src.Fail(watchErr)

	_, err := tr.Current()
	assert.ErrorIs(t, err, watchErr)

	// A reading beats a stale error.
	src.Offer(Reading{Lat: 1, Lng: 2})
	cur, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, Reading{Lat: 1, Lng: 2}, cur)
}

func TestTrackerStoredReadingOutlivesLaterError(t *testing.T) {
	tr := NewTracker(5, nil)
	src := NewPushSource()
	require.NoError(t, tr.Start(context.Background(), src))
	defer tr.Stop()

	src.Offer(Reading{Lat: 1, Lng: 2})
	src.Fail(errors.New("signal lost"))

	// The last good fix is still the answer.
	cur, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, Reading{Lat: 1, Lng: 2}, cur)
}

func TestTrackerStopIsIdempotentAndDropsLateReadings(t *testing.T) {
	var emitted []Reading
	tr := NewTracker(0, func(r Reading) {
		emitted = append(emitted, r)
	})
	src := NewPushSource()
	require.NoError(t, tr.Start(context.Background(), src))

	src.Offer(Reading{Lat: 1, Lng: 1})
	tr.Stop()
	tr.Stop()

	tr.handleReading(Reading{Lat: 2, Lng: 2})
	assert.Len(t, emitted, 1)

	cur, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, Reading{Lat: 1, Lng: 1}, cur)
}

func TestTrackerStopBeforeStartCompletes(t *testing.T) {
	tr := NewTracker(0, nil)
	src := NewPushSource()
	tr.Stop()

	// Start after Stop immediately tears the watch back down; readings
	// offered afterwards never reach the tracker.
	require.NoError(t, tr.Start(context.Background(), src))
	src.Offer(Reading{Lat: 1, Lng: 1})

	_, err := tr.Current()
	assert.ErrorIs(t, err, ErrNoReading)
}
