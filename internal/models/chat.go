package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is a single direct message, stored one document per message
// in the messages collection. Text is encrypted at rest; the stored field
// holds the sealed form and is decrypted on read.
type ChatMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"-"`
	SenderID       string             `bson:"sender_id" json:"senderId"`
	Text           string             `bson:"text" json:"text"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}

// Conversation is the metadata document for a direct-message thread.
type Conversation struct {
	ID           string    `bson:"_id" json:"id"`
	Participants []string  `bson:"participants" json:"participants"`
	LastMessage  string    `bson:"last_message" json:"lastMessage"`
	LastUpdated  time.Time `bson:"last_updated" json:"lastUpdated"`
}

// ConversationID derives the canonical thread id for a pair of users:
// the two ids sorted and joined with an underscore, so both sides land
// on the same document.
func ConversationID(uid1, uid2 string) string {
	ids := []string{uid1, uid2}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
