package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/internal/radar"
)

type fakeSnapshots struct {
	mu    sync.Mutex
	auras []models.Aura
	err   error
	calls int
}

func (f *fakeSnapshots) Recent(context.Context) ([]models.Aura, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Aura, len(f.auras))
	copy(out, f.auras)
	return out, nil
}

func (f *fakeSnapshots) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFeedPushesInitialSnapshot(t *testing.T) {
	store := &fakeSnapshots{auras: []models.Aura{{UID: "u1"}, {UID: "u2"}}}
	f := &Feed{store: store}

	got := make(chan []models.Aura, 1)
	stop, err := f.Subscribe(context.Background(), radar.Query{}, func(auras []models.Aura) {
		got <- auras
	})
	require.NoError(t, err)
	defer stop()

	select {
	case auras := <-got:
		require.Len(t, auras, 2)
		assert.Equal(t, "u1", auras[0].UID)
	case <-time.After(time.Second):
		t.Fatal("expected an initial snapshot push")
	}
}

func TestFeedStopIsIdempotentAndEndsPushes(t *testing.T) {
	store := &fakeSnapshots{}
	f := &Feed{store: store}

	stop, err := f.Subscribe(context.Background(), radar.Query{}, func([]models.Aura) {})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.callCount() >= 1 }, time.Second, 5*time.Millisecond)

	stop()
	stop()

	before := store.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, store.callCount())
}

func TestFeedContextCancelEndsSubscription(t *testing.T) {
	store := &fakeSnapshots{}
	f := &Feed{store: store}

	ctx, cancel := context.WithCancel(context.Background())
	delivered := make(chan struct{}, 1)
	stop, err := f.Subscribe(ctx, radar.Query{}, func([]models.Aura) {
		select {
		case delivered <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("expected an initial snapshot push")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	before := store.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, store.callCount())
}

func TestFeedQueryErrorDoesNotDeliver(t *testing.T) {
	store := &fakeSnapshots{err: errors.New("mongo down")}
	f := &Feed{store: store}

	stop, err := f.Subscribe(context.Background(), radar.Query{}, func([]models.Aura) {
		t.Error("no snapshot should be delivered on query failure")
	})
	require.NoError(t, err)
	defer stop()

	assert.Eventually(t, func() bool { return store.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}
