package models

import (
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ProcessingStatus is the outcome recorded for one examined conversation.
type ProcessingStatus string

const (
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingSkipped   ProcessingStatus = "skipped"
	ProcessingFailed    ProcessingStatus = "failed"
)

// SkipReason classifies why a conversation was not sent through extraction
// (or why extraction declined to produce insights).
type SkipReason string

const (
	SkipTooShort            SkipReason = "too_short"
	SkipTooLong             SkipReason = "too_long"
	SkipInsufficientQuality SkipReason = "insufficient_quality"
	SkipProcessingError     SkipReason = "processing_error"
)

// AnalysisRecord is the per-conversation ledger row. Exactly one exists per
// (user, conversation) pair regardless of outcome; its presence is what stops
// a conversation from ever being examined twice.
type AnalysisRecord struct {
	ID                   surrealmodels.RecordID `json:"id"`
	UserID               string                 `json:"user_id"`
	ConversationID       string                 `json:"conversation_id"`
	ProcessingStatus     ProcessingStatus       `json:"processing_status"`
	AnalysisResult       map[string]any         `json:"analysis_result,omitempty"`
	SkipReason           *SkipReason            `json:"skip_reason,omitempty"`
	QualityScore         *float64               `json:"quality_score,omitempty"`
	MessageCount         int                    `json:"message_count"`
	TotalTokens          int                    `json:"total_tokens"`
	ProcessingDurationMs int64                  `json:"processing_duration_ms"`
	ExtractionMetadata   map[string]any         `json:"extraction_metadata,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
}

// AnalysisRecordID builds the deterministic compound record id for a
// (user, conversation) pair. Using the pair as the id makes a second CREATE
// fail at the database, which is the ledger's idempotency guarantee.
func AnalysisRecordID(userID, conversationID string) string {
	return fmt.Sprintf("%s:%s", userID, conversationID)
}
