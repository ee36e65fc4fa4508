package radar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFeed struct {
	mu     sync.Mutex
	subs   int
	stops  int
	active SnapshotFunc
}

func (f *fakeFeed) Subscribe(_ context.Context, _ Query, fn SnapshotFunc) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	f.active = fn
	return func() {
		f.mu.Lock()
		f.stops++
		f.mu.Unlock()
	}, nil
}

func (f *fakeFeed) push(auras []models.Aura) {
	f.mu.Lock()
	fn := f.active
	f.mu.Unlock()
	if fn != nil {
		fn(auras)
	}
}

func (f *fakeFeed) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs
}

type inRadarCall struct {
	uid   string
	count int
}

type fakeStats struct {
	calls chan inRadarCall
}

func newFakeStats() *fakeStats {
	return &fakeStats{calls: make(chan inRadarCall, 16)}
}

func (s *fakeStats) UpdateInRadar(_ context.Context, uid string, count int) error {
	s.calls <- inRadarCall{uid: uid, count: count}
	return nil
}

func testAura(uid string, lat, lng float64, lastSeen time.Time) models.Aura {
	return models.Aura{
		UID:      uid,
		Nickname: uid,
		Lat:      lat,
		Lng:      lng,
		Mood:     models.MoodCozy,
		Gender:   models.GenderFemale,
		AgeRange: models.Age18to25,
		Status:   models.StatusSingle,
		Seeking: models.Seeking{
			Gender:   models.SeekingEveryone,
			AgeRange: models.SeekingAll,
			Status:   models.SeekingAll,
		},
		LastSeen: lastSeen,
	}
}

func newTestEngine(t *testing.T, feed *fakeFeed, stats StatsWriter, radius int) *Engine {
	t.Helper()
	e := New(context.Background(), Config{
		ViewerID:        "me",
		Feed:            feed,
		Stats:           stats,
		ScanRangeMeters: radius,
	})
	e.now = func() time.Time { return testNow }
	t.Cleanup(e.Close)
	return e
}

func nearbyIDs(list []Candidate) []string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.UID)
	}
	return ids
}

func TestNoLocationMeansNoSubscriptionAndEmptyList(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000)

	assert.Equal(t, 0, feed.subCount())
	assert.Empty(t, e.Nearby())
}

func TestScenarioRecencyDistanceAndRadius(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 150000)
	e.SetLocation(0, 0)
	require.Equal(t, 1, feed.subCount())

	snapshot := []models.Aura{
		testAura("a", 0, 0.001, testNow),                      // ~111 m away, fresh
		testAura("b", 0, 0.001, testNow.Add(-15*time.Minute)), // stale
		testAura("c", 1, 1, testNow),                          // ~157 km away
	}
	feed.push(snapshot)

	nearby := e.Nearby()
	require.Equal(t, []string{"a"}, nearbyIDs(nearby))
	assert.Equal(t, 111, nearby[0].DistanceMeters)

	// Raising the radius re-keys the subscription; the same snapshot on
	// the new subscription now reaches candidate c.
	e.SetScanRange(200000)
	require.Equal(t, 2, feed.subCount())
	feed.push(snapshot)

	assert.Equal(t, []string{"a", "c"}, nearbyIDs(e.Nearby()))
}

func TestElevenMinuteOldRecordNeverListed(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	feed.push([]models.Aura{
		testAura("old", 0, 0.001, testNow.Add(-11*time.Minute)),
	})
	assert.Empty(t, e.Nearby())
}

func TestMissingTimestampTreatedAsStale(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	feed.push([]models.Aura{
		testAura("no-ts", 0, 0.001, time.Time{}),
	})
	assert.Empty(t, e.Nearby())
}

func TestRangeBoundaryIsInclusive(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 111) // exactly the candidate's distance
	e.SetLocation(0, 0)

	snapshot := []models.Aura{testAura("edge", 0, 0.001, testNow)}
	feed.push(snapshot)
	assert.Equal(t, []string{"edge"}, nearbyIDs(e.Nearby()))

	e.SetScanRange(110)
	feed.push(snapshot)
	assert.Empty(t, e.Nearby())
}

func TestLargerRadiusProducesSuperset(t *testing.T) {
	snapshot := []models.Aura{
		testAura("near", 10, 10.0005, testNow),
		testAura("mid", 10, 10.005, testNow),
		testAura("far", 10, 10.05, testNow),
	}

	listAt := func(radius int) []string {
		feed := &fakeFeed{}
		e := newTestEngine(t, feed, nil, radius)
		e.SetLocation(10, 10)
		feed.push(snapshot)
		return nearbyIDs(e.Nearby())
	}

	small := listAt(600)
	large := listAt(6000)
	assert.Subset(t, large, small)
	assert.Equal(t, []string{"near"}, small)
	assert.Equal(t, []string{"near", "mid"}, large)
}

func TestSelfExclusion(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	feed.push([]models.Aura{
		testAura("me", 0, 0.001, testNow),
		testAura("other", 0, 0.001, testNow),
	})
	assert.Equal(t, []string{"other"}, nearbyIDs(e.Nearby()))
}

func TestUnlocatableRecordDropped(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(10, 10)

	feed.push([]models.Aura{
		testAura("nowhere", 0, 0, testNow),
	})
	assert.Empty(t, e.Nearby())
}

func TestPreferenceFilterOnlyShrinks(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	male := testAura("him", 0, 0.001, testNow)
	male.Gender = models.GenderMale
	female := testAura("her", 0, 0.002, testNow)

	feed.push([]models.Aura{male, female})
	everyone := nearbyIDs(e.Nearby())
	require.Equal(t, []string{"him", "her"}, everyone)

	// Narrowing from the wildcard recomputes from the held snapshot
	// without a new push and can only shrink the list.
	e.SetSeeking(models.Seeking{Gender: string(models.GenderFemale)})
	narrowed := nearbyIDs(e.Nearby())
	assert.Subset(t, everyone, narrowed)
	assert.Equal(t, []string{"her"}, narrowed)
}

func TestMoodFilter(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	cozy := testAura("cozy", 0, 0.001, testNow)
	rizzing := testAura("rizzing", 0, 0.002, testNow)
	rizzing.Mood = models.MoodRizzing

	feed.push([]models.Aura{cozy, rizzing})
	require.Len(t, e.Nearby(), 2)

	e.SetMoodFilter(models.MoodRizzing)
	assert.Equal(t, []string{"rizzing"}, nearbyIDs(e.Nearby()))
}

func TestSelfReportPublishesPostDistancePreFilterCount(t *testing.T) {
	feed := &fakeFeed{}
	stats := newFakeStats()
	e := newTestEngine(t, feed, stats, 1000000)
	e.SetBroadcasting(true)
	e.SetLocation(0, 0)

	self := testAura("me", 0, 0, testNow)
	self.Stats.InRadar = 1

	// Three candidates pass the distance filter; one of them fails the
	// mood filter, which must not change the published count.
	e.SetMoodFilter(models.MoodCozy)
	c3 := testAura("c3", 0, 0.003, testNow)
	c3.Mood = models.MoodSendy

	feed.push([]models.Aura{
		self,
		testAura("c1", 0, 0.001, testNow),
		testAura("c2", 0, 0.002, testNow),
		c3,
	})

	select {
	case call := <-stats.calls:
		assert.Equal(t, inRadarCall{uid: "me", count: 3}, call)
	case <-time.After(time.Second):
		t.Fatal("expected an inRadar update")
	}

	// Once the stored count matches, no further update is issued.
	self.Stats.InRadar = 3
	feed.push([]models.Aura{
		self,
		testAura("c1", 0, 0.001, testNow),
		testAura("c2", 0, 0.002, testNow),
		c3,
	})
	select {
	case call := <-stats.calls:
		t.Fatalf("unexpected inRadar update: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotBroadcastingNeverSelfReports(t *testing.T) {
	feed := &fakeFeed{}
	stats := newFakeStats()
	e := newTestEngine(t, feed, stats, 1000000)
	e.SetLocation(0, 0)

	feed.push([]models.Aura{testAura("c1", 0, 0.001, testNow)})

	select {
	case call := <-stats.calls:
		t.Fatalf("unexpected inRadar update: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOwnStatsMirroredFromSnapshot(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	self := testAura("me", 0, 0, testNow)
	self.Stats = models.AuraStats{Interested: 7, InRadar: 2}
	feed.push([]models.Aura{self})

	assert.Equal(t, models.AuraStats{Interested: 7, InRadar: 2}, e.OwnStats())
}

func TestResubscribeOnlyOnMaterialChange(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000)

	e.SetLocation(0, 0)
	require.Equal(t, 1, feed.subCount())

	// Numerically identical location: no new subscription.
	e.SetLocation(0, 0)
	assert.Equal(t, 1, feed.subCount())

	// Sub-threshold jitter rounds to the same key.
	e.SetLocation(0.00002, 0)
	assert.Equal(t, 1, feed.subCount())

	// Material movement re-keys.
	e.SetLocation(0.1, 0)
	assert.Equal(t, 2, feed.subCount())

	// So does a radius change.
	e.SetScanRange(2000)
	assert.Equal(t, 3, feed.subCount())

	// Re-applying the current settings does not.
	e.SetScanRange(2000)
	assert.Equal(t, 3, feed.subCount())
}

func TestSnapshotFromTornDownSubscriptionIgnored(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	feed.mu.Lock()
	staleFn := feed.active
	feed.mu.Unlock()

	// Re-key the subscription, then deliver a late snapshot through the
	// old callback: it must not disturb the current state.
	e.SetLocation(5, 5)
	feed.push([]models.Aura{testAura("current", 5, 5.001, testNow)})
	require.Equal(t, []string{"current"}, nearbyIDs(e.Nearby()))

	staleFn([]models.Aura{testAura("ghost", 5, 5.002, testNow)})
	assert.Equal(t, []string{"current"}, nearbyIDs(e.Nearby()))
}

func TestDistanceUsesLatestLocationAtProcessingTime(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)

	snapshot := []models.Aura{testAura("a", 0, 0.001, testNow)}
	feed.push(snapshot)
	require.Equal(t, 111, e.Nearby()[0].DistanceMeters)

	// Drift within the same subscription key, then a snapshot arrives:
	// the distance must reflect the newer position, not the one the
	// subscription was opened with.
	e.SetLocation(0, 0.00004)
	feed.push(snapshot)
	assert.Equal(t, 107, e.Nearby()[0].DistanceMeters)
}

func TestCloseIsIdempotentAndStopsProcessing(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEngine(t, feed, nil, 1000000)
	e.SetLocation(0, 0)
	feed.push([]models.Aura{testAura("a", 0, 0.001, testNow)})
	require.Len(t, e.Nearby(), 1)

	e.Close()
	e.Close()

	feed.push([]models.Aura{testAura("b", 0, 0.001, testNow)})
	assert.Equal(t, []string{"a"}, nearbyIDs(e.Nearby()))
}

func TestUpdatesDeliveredToCallback(t *testing.T) {
	feed := &fakeFeed{}
	var mu sync.Mutex
	var got []Update

	e := New(context.Background(), Config{
		ViewerID: "me",
		Feed:     feed,
		OnUpdate: func(u Update) {
			mu.Lock()
			got = append(got, u)
			mu.Unlock()
		},
		ScanRangeMeters: 1000000,
	})
	e.now = func() time.Time { return testNow }
	defer e.Close()

	e.SetLocation(0, 0)
	feed.push([]models.Aura{testAura("a", 0, 0.001, testNow)})

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, []string{"a"}, nearbyIDs(last.Nearby))
}
