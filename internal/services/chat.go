package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
	"github.com/jayakanthcm/moodcast-backend/pkg/utils"
)

const (
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"

	chatRecentKeyPrefix = "chat:conv:"
	chatRecentKeySuffix = ":recent"
	chatRecentMaxLen    = 50
	chatRecentTTL       = 1 * time.Hour
)

// ChatService persists direct messages (at-least-once: the document
// write is the source of truth, realtime delivery is best-effort on
// top). Message text is sealed before it reaches Mongo or the Redis
// recent cache and opened again on read.
type ChatService struct {
	db     *mongo.Database
	rdb    *redis.Client
	bus    *Bus
	cipher *utils.MessageCipher
}

func NewChatService(db *mongo.Database, rdb *redis.Client, bus *Bus, cipher *utils.MessageCipher) *ChatService {
	return &ChatService{db: db, rdb: rdb, bus: bus, cipher: cipher}
}

// EnsureIndexes configures the indexes backing history pagination and
// the conversation list. Called on startup.
func (s *ChatService) EnsureIndexes(ctx context.Context) error {
	msgs := s.db.Collection(MessagesCollection)
	_, err := msgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "timestamp", Value: -1},
		},
		Options: options.Index().SetName("idx_conversation_timestamp"),
	})
	if err != nil {
		return err
	}

	convs := s.db.Collection(ConversationsCollection)
	_, err = convs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}},
		Options: options.Index().SetName("idx_participants"),
	})
	return err
}

// Send persists a message and updates the conversation metadata, then
// publishes the realtime event. The returned message carries plaintext.
func (s *ChatService) Send(ctx context.Context, senderID, recipientID, text string) (models.ChatMessage, error) {
	if text == "" {
		return models.ChatMessage{}, fmt.Errorf("chat: message text is required")
	}
	convID := models.ConversationID(senderID, recipientID)
	now := time.Now().UTC()

	sealed, err := s.seal(text)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("chat: seal message: %w", err)
	}

	msg := models.ChatMessage{
		ID:             primitive.NewObjectID(),
		ConversationID: convID,
		SenderID:       senderID,
		Text:           sealed,
		Timestamp:      now,
	}

	if _, err := s.db.Collection(MessagesCollection).InsertOne(ctx, msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("chat: insert message: %w", err)
	}

	participants := []string{senderID, recipientID}
	_, err = s.db.Collection(ConversationsCollection).UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{
			"participants": participants,
			"last_message": sealed,
			"last_updated": now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("chat: upsert conversation: %w", err)
	}

	s.pushRecent(msg)

	if s.bus != nil {
		err := s.bus.PublishChat(ctx, ChatEvent{
			Type:           "message",
			ConversationID: convID,
			MessageID:      msg.ID.Hex(),
			SenderID:       senderID,
			Text:           text,
			Timestamp:      now,
		})
		if err != nil {
			// Realtime is best-effort; the message is already persisted.
			log.Printf("chat: publish event for %s failed: %v", convID, err)
		}
	}

	msg.Text = text
	return msg, nil
}

// History returns paginated messages between two users, oldest-first.
// Initial loads (before == nil) are served from the Redis recent cache
// when possible; on a miss the cache is warmed from Mongo.
func (s *ChatService) History(ctx context.Context, myID, otherID string, before *time.Time, limit int64) ([]models.ChatMessage, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	convID := models.ConversationID(myID, otherID)

	if before == nil && limit <= chatRecentMaxLen {
		if cached, ok := s.recentFromCache(ctx, convID); ok {
			out := cached
			if int64(len(cached)) > limit {
				out = cached[int64(len(cached))-limit:]
			}
			hasMore := int64(len(cached)) >= limit
			return s.openAll(out), hasMore, nil
		}
	}

	filter := bson.M{"conversation_id": convID}
	if before != nil {
		filter["timestamp"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := s.db.Collection(MessagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, false, fmt.Errorf("chat: history query: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []models.ChatMessage
	for cur.Next(ctx) {
		var m models.ChatMessage
		if err := cur.Decode(&m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := cur.Err(); err != nil {
		return nil, false, fmt.Errorf("chat: history cursor: %w", err)
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:len(msgs)-1]
	}

	// Reverse to oldest-first for the UI.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if before == nil {
		s.warmCache(convID, msgs)
	}

	return s.openAll(msgs), hasMore, nil
}

// Conversations lists a user's threads, most recently active first.
func (s *ChatService) Conversations(ctx context.Context, uid string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_updated", Value: -1}})
	cur, err := s.db.Collection(ConversationsCollection).Find(ctx, bson.M{"participants": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("chat: conversations query: %w", err)
	}
	defer cur.Close(ctx)

	var convs []models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			continue
		}
		if opened, err := s.open(c.LastMessage); err == nil {
			c.LastMessage = opened
		}
		convs = append(convs, c)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("chat: conversations cursor: %w", err)
	}
	return convs, nil
}

func (s *ChatService) seal(text string) (string, error) {
	if s.cipher == nil {
		return text, nil
	}
	return s.cipher.Seal(text)
}

func (s *ChatService) open(sealed string) (string, error) {
	if s.cipher == nil {
		return sealed, nil
	}
	return s.cipher.Open(sealed)
}

func (s *ChatService) openAll(msgs []models.ChatMessage) []models.ChatMessage {
	for i := range msgs {
		opened, err := s.open(msgs[i].Text)
		if err != nil {
			// Undecryptable text (rotated key, legacy plaintext) is
			// passed through rather than dropping the message.
			continue
		}
		msgs[i].Text = opened
	}
	return msgs
}

func chatRecentKey(conversationID string) string {
	return chatRecentKeyPrefix + conversationID + chatRecentKeySuffix
}

// pushRecent adds a message to the Redis recent cache (newest at head).
// LPUSH + LTRIM keeps the last 50. Fire-and-forget.
func (s *ChatService) pushRecent(msg models.ChatMessage) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, chatRecentKey(msg.ConversationID), data)
	pipe.LTrim(ctx, chatRecentKey(msg.ConversationID), 0, chatRecentMaxLen-1)
	pipe.Expire(ctx, chatRecentKey(msg.ConversationID), chatRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("chat: recent cache push failed for %s: %v", msg.ConversationID, err)
	}
}

// recentFromCache returns cached messages oldest-first, still sealed.
func (s *ChatService) recentFromCache(ctx context.Context, conversationID string) ([]models.ChatMessage, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.LRange(ctx, chatRecentKey(conversationID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	var msgs []models.ChatMessage
	for i := len(raw) - 1; i >= 0; i-- {
		var m models.ChatMessage
		if json.Unmarshal([]byte(raw[i]), &m) != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

func (s *ChatService) warmCache(conversationID string, msgs []models.ChatMessage) {
	if s.rdb == nil || len(msgs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, chatRecentKey(conversationID))
	// Oldest-first input, LPUSH flips to newest-at-head.
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		pipe.LPush(ctx, chatRecentKey(conversationID), data)
	}
	pipe.LTrim(ctx, chatRecentKey(conversationID), 0, chatRecentMaxLen-1)
	pipe.Expire(ctx, chatRecentKey(conversationID), chatRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("chat: cache warm failed for %s: %v", conversationID, err)
	}
}
