package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Conversation is one chat session captured for a user.
// The pipeline only reads conversations; capture happens upstream.
type Conversation struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     *string                `json:"title,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Message is a single turn within a conversation.
type Message struct {
	ID             surrealmodels.RecordID `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	UserID         string                 `json:"user_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Message roles as they appear in the conversation store.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
