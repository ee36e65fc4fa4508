package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
)

// HeartbeatInterval is how often a broadcasting session refreshes its
// lastSeen. Well inside the 10-minute staleness window, so one missed
// beat never drops the record.
const HeartbeatInterval = 3 * time.Minute

// Writer is the slice of the store a session needs; *Store satisfies it.
type Writer interface {
	Create(ctx context.Context, aura models.Aura) error
	UpdateFields(ctx context.Context, uid string, fields bson.M) error
	Heartbeat(ctx context.Context, uid string) error
	Delete(ctx context.Context, uid string) error
}

// Session owns the lifecycle of one viewer's broadcast record: create on
// start, heartbeat on an interval, partial patches, best-effort delete
// on stop. At most one session instance mutates a given record.
type Session struct {
	store    Writer
	uid      string
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
}

func NewSession(store Writer, uid string) *Session {
	return &Session{
		store:    store,
		uid:      uid,
		interval: HeartbeatInterval,
	}
}

// Start creates the record (the store assigns the initial lastSeen) and
// begins the heartbeat loop. Calling Start twice is an error on the
// caller's side; the second call is ignored.
func (s *Session) Start(ctx context.Context, aura models.Aura) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	aura.UID = s.uid
	hbCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.store.Create(ctx, aura); err != nil {
		cancel()
		s.mu.Lock()
		s.started = false
		s.cancel = nil
		s.mu.Unlock()
		return err
	}

	go s.heartbeatLoop(hbCtx)
	return nil
}

// Patch applies a partial update to the record. The store recomputes the
// proximity key on coordinate changes and refreshes lastSeen on every
// patch, so any edit also counts as a heartbeat.
func (s *Session) Patch(ctx context.Context, fields bson.M) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.store.UpdateFields(ctx, s.uid, fields)
}

// Stop ends the session: the heartbeat is cancelled and the record is
// deleted best-effort. A failed delete is only logged; the record ages
// out through the staleness window instead. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.cancel = nil
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !started {
		return
	}

	ctx, cancelDel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDel()
	if err := s.store.Delete(ctx, s.uid); err != nil {
		log.Printf("presence: session %s delete failed (will age out): %v", s.uid, err)
	}
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := s.store.Heartbeat(hctx, s.uid)
			cancel()
			if err != nil && ctx.Err() == nil {
				log.Printf("presence: heartbeat for %s failed: %v", s.uid, err)
			}
		}
	}
}
