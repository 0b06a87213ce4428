package model

import (
	"time"
)

// Kind tags a memory record.
type Kind string

const (
	// KindTurn is a generic conversational turn.
	KindTurn Kind = "turn"
	// KindFact is a durable personal or contextual fact.
	KindFact Kind = "fact"
	// KindFile describes an uploaded or loaded document.
	KindFile Kind = "file"
)

// Memory topics.
const (
	TopicCybersecurity = "cybersecurity"
	TopicDocument      = "document"
)

// MemoryRecord is an append-only snapshot of a turn or extracted fact.
type MemoryRecord struct {
	ID                string         `json:"id" bson:"_id"`
	UserID            string         `json:"user_id" bson:"user_id"`
	ConversationID    string         `json:"conversation_id" bson:"conversation_id"`
	ConversationTitle string         `json:"conversation_title,omitempty" bson:"conversation_title,omitempty"`
	Role              string         `json:"role" bson:"role"`
	Text              string         `json:"text" bson:"text"`
	Extra             map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
	Kind              Kind           `json:"type" bson:"type"`
	IsFactual         bool           `json:"is_factual" bson:"is_factual"`
	Importance        float64        `json:"importance" bson:"importance"`
	Topic             string         `json:"topic,omitempty" bson:"topic,omitempty"`
	Embedding         []float32      `json:"-" bson:"embedding,omitempty"`
	CreatedAt         time.Time      `json:"timestamp" bson:"timestamp"`
}

// MemoryBuckets splits retrieved memories by conversation. A record is in exactly one bucket.
type MemoryBuckets struct {
	Current []MemoryRecord `json:"current"`
	Other   []MemoryRecord `json:"other"`
}

// Empty reports whether both buckets are empty.
func (b MemoryBuckets) Empty() bool {
	return len(b.Current) == 0 && len(b.Other) == 0
}
