package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceChannel   = "presence:events"
	chatChannelPrefix = "chat:conv:"
)

// PresenceEvent is published after every write to a live aura so feed
// subscriptions on any instance re-query and push a fresh snapshot.
type PresenceEvent struct {
	Op  string `json:"op"` // "created", "updated", "heartbeat", "deleted"
	UID string `json:"uid"`
}

// ChatEvent is the realtime payload fanned out to WebSocket connections
// subscribed to a conversation.
type ChatEvent struct {
	Type           string    `json:"type"` // "message", "typing_start", "typing_stop"
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty"`
	SenderID       string    `json:"sender_id,omitempty"`
	Text           string    `json:"text,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// Bus bridges Redis pub/sub and local in-process subscribers. Every
// instance runs one Redis listener; events published anywhere (including
// locally) come back through Redis and are fanned out to local
// subscribers, so there is a single delivery path.
type Bus struct {
	rdb *redis.Client

	mu           sync.RWMutex
	nextID       int
	presenceSubs map[int]func(PresenceEvent)
	convSubs     map[string]map[int]chan ChatEvent

	started sync.Once
}

func NewBus(rdb *redis.Client) *Bus {
	return &Bus{
		rdb:          rdb,
		presenceSubs: make(map[int]func(PresenceEvent)),
		convSubs:     make(map[string]map[int]chan ChatEvent),
	}
}

// Start launches the shared Redis listener. Safe to call more than once;
// only the first call does anything.
func (b *Bus) Start(ctx context.Context) {
	b.started.Do(func() {
		go b.run(ctx)
	})
}

func (b *Bus) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := b.rdb.PSubscribe(ctx, presenceChannel, chatChannelPrefix+"*")
			defer pubsub.Close()

			log.Printf("✅ Redis event bus started (channels: %s, %s*)", presenceChannel, chatChannelPrefix)

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("event bus: receive error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}
				backoff = time.Second
				b.dispatch(msg.Channel, []byte(msg.Payload))
			}
		}()
	}
}

func (b *Bus) dispatch(channel string, payload []byte) {
	if channel == presenceChannel {
		var ev PresenceEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("event bus: bad presence payload: %v", err)
			return
		}
		b.mu.RLock()
		subs := make([]func(PresenceEvent), 0, len(b.presenceSubs))
		for _, fn := range b.presenceSubs {
			subs = append(subs, fn)
		}
		b.mu.RUnlock()
		for _, fn := range subs {
			fn(ev)
		}
		return
	}

	var ev ChatEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("event bus: bad chat payload: %v", err)
		return
	}
	// Sends happen under the read lock so cancel (which closes the
	// channel under the write lock) can never race a send.
	b.mu.RLock()
	for _, ch := range b.convSubs[ev.ConversationID] {
		// Non-blocking best-effort send; a slow consumer drops events
		// rather than stalling the bus.
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.RUnlock()
}

// PublishPresence announces a presence write to every instance.
func (b *Bus) PublishPresence(ctx context.Context, ev PresenceEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, presenceChannel, data).Err()
}

// SubscribePresence registers a local callback for presence events. The
// returned cancel is idempotent.
func (b *Bus) SubscribePresence(fn func(PresenceEvent)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.presenceSubs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.presenceSubs, id)
			b.mu.Unlock()
		})
	}
}

// PublishChat announces a chat event on the conversation's channel.
func (b *Bus) PublishChat(ctx context.Context, ev ChatEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, chatChannelPrefix+ev.ConversationID, data).Err()
}

// SubscribeConversation returns a channel of events for one conversation
// plus an idempotent cancel. The channel is closed on cancel.
func (b *Bus) SubscribeConversation(conversationID string) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, 16)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.convSubs[conversationID] == nil {
		b.convSubs[conversationID] = make(map[int]chan ChatEvent)
	}
	b.convSubs[conversationID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.convSubs[conversationID], id)
			if len(b.convSubs[conversationID]) == 0 {
				delete(b.convSubs, conversationID)
			}
			close(ch)
			b.mu.Unlock()
		})
	}
}
