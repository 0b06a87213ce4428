// Package model defines the data models for the assistant.
package model

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultConversationTitle is used when a conversation is created without a title.
const DefaultConversationTitle = "New Conversation"

// UserConversations is the unit of atomic read-modify-write: all conversations of one user.
type UserConversations struct {
	UserID        string         `json:"user_id" bson:"-"`
	Conversations []Conversation `json:"conversations" bson:"conversations"`
}

// Find returns the index of the conversation with id, or -1.
func (u *UserConversations) Find(id string) int {
	for i := range u.Conversations {
		if u.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// Conversation is an ordered thread of messages owned by a user.
type Conversation struct {
	ID        string    `json:"id" bson:"id"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Messages  []Message `json:"messages" bson:"messages"`
}

// Summary returns the listing view of the conversation.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}

// ConversationSummary is a conversation without its messages.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Message is one turn of a conversation.
type Message struct {
	ID        string           `json:"id,omitempty" bson:"id,omitempty"`
	Role      string           `json:"role" bson:"role"`
	Content   string           `json:"content" bson:"content"`
	Timestamp time.Time        `json:"timestamp" bson:"timestamp"`
	ReplyTo   *ReplyTo         `json:"replyTo,omitempty" bson:"replyTo,omitempty"`
	FileID    string           `json:"file_id,omitempty" bson:"file_id,omitempty"`
	FileName  string           `json:"fileName,omitempty" bson:"fileName,omitempty"`
	HasFile   bool             `json:"hasFile,omitempty" bson:"hasFile,omitempty"`
	Versions  []MessageVersion `json:"versions,omitempty" bson:"versions,omitempty"`
}

// MessageVersion is a prior content of an edited or regenerated message.
type MessageVersion struct {
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// SearchResult is one conversation matched by a search query.
type SearchResult struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MatchType    string    `json:"match_type"`
	Snippet      *string   `json:"snippet"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Matches      []string  `json:"matches"`
	MatchIndexes []int     `json:"matchIndexes"`
}

// Search match types.
const (
	MatchTitle   = "title"
	MatchMessage = "message"
)
