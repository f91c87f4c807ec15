// Package service implements the memory processing pipeline: job lifecycle,
// conversation selection, quality filtering, extraction, merging and profile
// updates.
package service

import (
	"context"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/models"
)

// Store is the persistence surface the pipeline needs. *db.Client satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	CreateJob(ctx context.Context, userID string, total, batchSize int) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, userID *string, limit int) ([]models.Job, error)
	ClaimJob(ctx context.Context, id string) (*models.Job, error)
	SetJobTotal(ctx context.Context, id string, total int) error
	UpdateJobProgress(ctx context.Context, id string, processed, percentage int) error
	MergeJobDetails(ctx context.Context, id string, details map[string]any) error
	CompleteJob(ctx context.Context, id string, processed int) (*models.Job, error)
	FailJob(ctx context.Context, id string, errMsg string) (*models.Job, error)

	CreateAnalysisRecord(ctx context.Context, rec models.AnalysisRecord) (*models.AnalysisRecord, error)
	GetAnalysisRecord(ctx context.Context, userID, conversationID string) (*models.AnalysisRecord, error)
	ListAnalyzedConversationIDs(ctx context.Context, userID string) ([]string, error)
	RecordDuplicateAttempt(ctx context.Context, userID, conversationID string) error

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, userID string, data map[string]any, convDelta, msgDelta int) (*models.Profile, error)
	TouchProfile(ctx context.Context, userID string) error
	SetProfileSummary(ctx context.Context, userID, summary string) (*models.Profile, error)

	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	GetMessages(ctx context.Context, userID string, conversationIDs []string) ([]models.Message, error)
}

// Config carries the pipeline tuning knobs.
type Config struct {
	// BatchSize caps how many conversations one job examines.
	BatchSize int
	// SettleDelay is waited before selecting conversations so that writes
	// racing with the trigger become visible.
	SettleDelay time.Duration
	// ExtractionDelay spaces out sequential LLM calls.
	ExtractionDelay time.Duration
	// MaxTokensPerConv is the estimated-token ceiling above which a
	// conversation is skipped as too long.
	MaxTokensPerConv int
}

// withDefaults fills zero values with the standard limits.
func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = models.DefaultBatchSize
	}
	if c.MaxTokensPerConv <= 0 {
		c.MaxTokensPerConv = 6000
	}
	return c
}
