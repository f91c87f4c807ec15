package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Profile is the single merged memory profile for a user. The record id is the
// user id, so writes are natural upserts. Version only ever increases and is
// bumped inside the same statement that writes profile_data.
type Profile struct {
	ID                surrealmodels.RecordID `json:"id"`
	UserID            string                 `json:"user_id"`
	ProfileData       map[string]any         `json:"profile_data"`
	ConversationCount int                    `json:"conversation_count"`
	MessageCount      int                    `json:"message_count"`
	Version           int                    `json:"version"`
	AISummary         *string                `json:"ai_summary,omitempty"`
	AISummaryVersion  int                    `json:"ai_summary_version"`
	AISummaryUpdated  *time.Time             `json:"ai_summary_updated,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}
