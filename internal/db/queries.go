package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/raphaelgruber/profiled-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// query runs a statement returning rows of T, recording the timing when a
// metrics collector is attached.
func query[T any](ctx context.Context, c *Client, sql string, vars map[string]any) (*[]surrealdb.QueryResult[[]T], error) {
	start := time.Now()
	results, err := surrealdb.Query[[]T](ctx, c.db, sql, vars)
	if c.metrics != nil {
		c.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
	}
	return results, err
}

// exec runs a statement whose rows are not needed.
func (c *Client) exec(ctx context.Context, sql string, vars map[string]any) error {
	start := time.Now()
	_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	if c.metrics != nil {
		c.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
	}
	return err
}

// first extracts the single record from a query result wrapper, or nil.
func first[T any](results *[]surrealdb.QueryResult[[]T]) *T {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}

// all extracts the record list from a query result wrapper.
func all[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return []T{}
	}
	return (*results)[0].Result
}

// =============================================================================
// JOBS
// =============================================================================

// CreateJob inserts a new pending job for a user.
func (c *Client) CreateJob(ctx context.Context, userID string, total, batchSize int) (*models.Job, error) {
	id := uuid.New().String()

	results, err := query[models.Job](ctx, c,`
		CREATE type::record("job", $id) SET
			user_id = $user_id,
			job_type = $job_type,
			status = "pending",
			total_conversations = $total,
			batch_size = $batch_size
	`, map[string]any{
		"id":         id,
		"user_id":    userID,
		"job_type":   models.JobTypeMemoryProcessing,
		"total":      total,
		"batch_size": batchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", wrapQueryError(err))
	}

	job := first(results)
	if job == nil {
		return nil, fmt.Errorf("create job: no result returned")
	}
	return job, nil
}

// GetJob retrieves a job by ID. Returns nil if not found.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	results, err := query[models.Job](ctx, c,`
		SELECT * FROM type::record("job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return first(results), nil
}

// ListJobs returns jobs most recent first, optionally filtered by user.
func (c *Client) ListJobs(ctx context.Context, userID *string, limit int) ([]models.Job, error) {
	userClause := ""
	vars := map[string]any{"limit": limit}
	if userID != nil {
		userClause = "WHERE user_id = $user_id"
		vars["user_id"] = *userID
	}

	sql := fmt.Sprintf(`
		SELECT * FROM job %s ORDER BY created_at DESC LIMIT $limit
	`, userClause)

	results, err := query[models.Job](ctx, c,sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return all(results), nil
}

// ClaimJob atomically transitions a job from pending to processing. The WHERE
// clause makes the claim a compare-and-swap: when two workers race, only one
// sees a non-empty result. Returns nil if the job was not pending.
func (c *Client) ClaimJob(ctx context.Context, id string) (*models.Job, error) {
	results, err := query[models.Job](ctx, c,`
		UPDATE type::record("job", $id) SET
			status = "processing",
			started_at = time::now()
		WHERE status = "pending"
		RETURN AFTER
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", wrapQueryError(err))
	}
	return first(results), nil
}

// SetJobTotal reconciles total_conversations with the batch actually selected.
// The batch is recomputed after the settle delay, so conversations created or
// ledgered since the job was sized would otherwise leave processed out of
// step with total.
func (c *Client) SetJobTotal(ctx context.Context, id string, total int) error {
	err := c.exec(ctx, `
		UPDATE type::record("job", $id) SET total_conversations = $total
	`, map[string]any{"id": id, "total": total})
	if err != nil {
		return fmt.Errorf("set job total: %w", err)
	}
	return nil
}

// UpdateJobProgress writes processed-count and percentage for a running job.
func (c *Client) UpdateJobProgress(ctx context.Context, id string, processed, percentage int) error {
	err := c.exec(ctx, `
		UPDATE type::record("job", $id) SET
			processed_conversations = $processed,
			progress_percentage = $percentage
	`, map[string]any{
		"id":         id,
		"processed":  processed,
		"percentage": percentage,
	})
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// MergeJobDetails merges diagnostic metadata into processing_details
// (last writer wins per key).
func (c *Client) MergeJobDetails(ctx context.Context, id string, details map[string]any) error {
	err := c.exec(ctx, `
		UPDATE type::record("job", $id) SET
			processing_details = object::from_entries(array::concat(
				object::entries(processing_details ?? {}),
				object::entries($details)
			))
	`, map[string]any{"id": id, "details": details})
	if err != nil {
		return fmt.Errorf("merge job details: %w", err)
	}
	return nil
}

// CompleteJob marks a job completed with 100% progress.
func (c *Client) CompleteJob(ctx context.Context, id string, processed int) (*models.Job, error) {
	results, err := query[models.Job](ctx, c,`
		UPDATE type::record("job", $id) SET
			status = "completed",
			processed_conversations = $processed,
			progress_percentage = 100,
			completed_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id, "processed": processed})
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}

	job := first(results)
	if job == nil {
		return nil, fmt.Errorf("complete job: %w", ErrNotFound)
	}
	return job, nil
}

// FailJob marks a job failed and persists the triggering error message.
func (c *Client) FailJob(ctx context.Context, id string, errMsg string) (*models.Job, error) {
	results, err := query[models.Job](ctx, c,`
		UPDATE type::record("job", $id) SET
			status = "failed",
			error = $error,
			completed_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id, "error": errMsg})
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}

	job := first(results)
	if job == nil {
		return nil, fmt.Errorf("fail job: %w", ErrNotFound)
	}
	return job, nil
}

// =============================================================================
// ANALYSIS LEDGER
// =============================================================================

// CreateAnalysisRecord inserts the ledger row for one examined conversation.
// The record id is the deterministic compound pair id, so a concurrent or
// repeated attempt fails with ErrAlreadyAnalyzed instead of writing a
// second outcome.
func (c *Client) CreateAnalysisRecord(ctx context.Context, rec models.AnalysisRecord) (*models.AnalysisRecord, error) {
	id := models.AnalysisRecordID(rec.UserID, rec.ConversationID)

	vars := map[string]any{
		"id":              id,
		"user_id":         rec.UserID,
		"conversation_id": rec.ConversationID,
		"status":          string(rec.ProcessingStatus),
		"result":          rec.AnalysisResult,
		"quality_score":   rec.QualityScore,
		"message_count":   rec.MessageCount,
		"total_tokens":    rec.TotalTokens,
		"duration_ms":     rec.ProcessingDurationMs,
		"metadata":        rec.ExtractionMetadata,
	}
	var skip *string
	if rec.SkipReason != nil {
		s := string(*rec.SkipReason)
		skip = &s
	}
	vars["skip_reason"] = skip

	results, err := query[models.AnalysisRecord](ctx, c,`
		CREATE type::record("analysis", $id) SET
			user_id = $user_id,
			conversation_id = $conversation_id,
			processing_status = $status,
			analysis_result = $result,
			skip_reason = $skip_reason,
			quality_score = $quality_score,
			message_count = $message_count,
			total_tokens = $total_tokens,
			processing_duration_ms = $duration_ms,
			extraction_metadata = $metadata
	`, vars)
	if err != nil {
		return nil, wrapQueryError(err)
	}

	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create analysis record: no result returned")
	}
	return created, nil
}

// GetAnalysisRecord retrieves the ledger row for a (user, conversation) pair.
// Returns nil if the pair was never examined.
func (c *Client) GetAnalysisRecord(ctx context.Context, userID, conversationID string) (*models.AnalysisRecord, error) {
	results, err := query[models.AnalysisRecord](ctx, c,`
		SELECT * FROM type::record("analysis", $id)
	`, map[string]any{"id": models.AnalysisRecordID(userID, conversationID)})
	if err != nil {
		return nil, fmt.Errorf("get analysis record: %w", err)
	}
	return first(results), nil
}

// ListAnalyzedConversationIDs returns every conversation id that already has a
// ledger row for this user, regardless of outcome. Input to the selector's
// set-difference.
func (c *Client) ListAnalyzedConversationIDs(ctx context.Context, userID string) ([]string, error) {
	type row struct {
		ConversationID string `json:"conversation_id"`
	}

	results, err := query[row](ctx, c,`
		SELECT conversation_id FROM analysis WHERE user_id = $user_id
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list analyzed conversations: %w", err)
	}

	rows := all(results)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ConversationID)
	}
	return ids, nil
}

// RecordDuplicateAttempt attaches duplicate-processing metadata to an existing
// ledger row instead of writing a second outcome.
func (c *Client) RecordDuplicateAttempt(ctx context.Context, userID, conversationID string) error {
	err := c.exec(ctx, `
		UPDATE type::record("analysis", $id) SET
			extraction_metadata.duplicate_attempts = (extraction_metadata.duplicate_attempts ?? 0) + 1,
			extraction_metadata.last_duplicate_at = time::now()
	`, map[string]any{"id": models.AnalysisRecordID(userID, conversationID)})
	if err != nil {
		return fmt.Errorf("record duplicate attempt: %w", err)
	}
	return nil
}

// =============================================================================
// PROFILE
// =============================================================================

// GetProfile retrieves a user's profile. Returns nil if none exists yet.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	results, err := query[models.Profile](ctx, c,`
		SELECT * FROM type::record("profile", $id)
	`, map[string]any{"id": userID})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return first(results), nil
}

// UpsertProfile writes merged profile data and bumps version by exactly one,
// all inside a single statement so the version increment can never be lost to
// a concurrent writer. Counters accumulate the deltas from this batch only.
func (c *Client) UpsertProfile(ctx context.Context, userID string, data map[string]any, convDelta, msgDelta int) (*models.Profile, error) {
	results, err := query[models.Profile](ctx, c,`
		UPSERT type::record("profile", $id) SET
			user_id = $user_id,
			profile_data = $data,
			conversation_count = (conversation_count ?? 0) + $conv_delta,
			message_count = (message_count ?? 0) + $msg_delta,
			version = (version ?? 0) + 1,
			created_at = created_at ?? time::now(),
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":         userID,
		"user_id":    userID,
		"data":       data,
		"conv_delta": convDelta,
		"msg_delta":  msgDelta,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", wrapQueryError(err))
	}

	p := first(results)
	if p == nil {
		return nil, fmt.Errorf("upsert profile: no result returned")
	}
	return p, nil
}

// TouchProfile bumps updated_at without changing version, keeping "last
// processed" visible for jobs that found nothing to extract. A no-op when the
// user has no profile yet.
func (c *Client) TouchProfile(ctx context.Context, userID string) error {
	err := c.exec(ctx, `
		UPDATE type::record("profile", $id) SET updated_at = time::now()
	`, map[string]any{"id": userID})
	if err != nil {
		return fmt.Errorf("touch profile: %w", err)
	}
	return nil
}

// SetProfileSummary writes the derived natural-language digest and bumps both
// the summary version and the profile version.
func (c *Client) SetProfileSummary(ctx context.Context, userID, summary string) (*models.Profile, error) {
	results, err := query[models.Profile](ctx, c,`
		UPDATE type::record("profile", $id) SET
			ai_summary = $summary,
			ai_summary_version = (ai_summary_version ?? 0) + 1,
			ai_summary_updated = time::now(),
			version = (version ?? 0) + 1,
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": userID, "summary": summary})
	if err != nil {
		return nil, fmt.Errorf("set profile summary: %w", err)
	}

	p := first(results)
	if p == nil {
		return nil, fmt.Errorf("set profile summary: %w", ErrNotFound)
	}
	return p, nil
}

// =============================================================================
// CONVERSATION STORE (read side consumed by the selector, write side for
// seeding via the API)
// =============================================================================

// CreateConversation inserts a conversation for a user.
func (c *Client) CreateConversation(ctx context.Context, userID string, title *string, createdAt *time.Time) (*models.Conversation, error) {
	id := uuid.New().String()

	vars := map[string]any{
		"id":      id,
		"user_id": userID,
		"title":   title,
	}
	createdClause := ""
	if createdAt != nil {
		createdClause = ", created_at = <datetime>$created_at"
		vars["created_at"] = createdAt.UTC().Format(time.RFC3339Nano)
	}

	sql := fmt.Sprintf(`
		CREATE type::record("conversation", $id) SET
			user_id = $user_id,
			title = $title%s
	`, createdClause)

	results, err := query[models.Conversation](ctx, c,sql, vars)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", wrapQueryError(err))
	}

	conv := first(results)
	if conv == nil {
		return nil, fmt.Errorf("create conversation: no result returned")
	}
	return conv, nil
}

// CreateMessage appends a message to a conversation.
func (c *Client) CreateMessage(ctx context.Context, userID, conversationID, role, content string, createdAt *time.Time) (*models.Message, error) {
	id := uuid.New().String()

	vars := map[string]any{
		"id":              id,
		"user_id":         userID,
		"conversation_id": conversationID,
		"role":            role,
		"content":         content,
	}
	createdClause := ""
	if createdAt != nil {
		createdClause = ", created_at = <datetime>$created_at"
		vars["created_at"] = createdAt.UTC().Format(time.RFC3339Nano)
	}

	sql := fmt.Sprintf(`
		CREATE type::record("message", $id) SET
			conversation_id = $conversation_id,
			user_id = $user_id,
			role = $role,
			content = $content%s
	`, createdClause)

	results, err := query[models.Message](ctx, c,sql, vars)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", wrapQueryError(err))
	}

	msg := first(results)
	if msg == nil {
		return nil, fmt.Errorf("create message: no result returned")
	}
	return msg, nil
}

// ListConversations returns all of a user's conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	results, err := query[models.Conversation](ctx, c,`
		SELECT * FROM conversation WHERE user_id = $user_id ORDER BY created_at DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return all(results), nil
}

// GetMessages returns the messages of the given conversations in
// chronological order.
func (c *Client) GetMessages(ctx context.Context, userID string, conversationIDs []string) ([]models.Message, error) {
	if len(conversationIDs) == 0 {
		return []models.Message{}, nil
	}

	results, err := query[models.Message](ctx, c,`
		SELECT * FROM message
		WHERE user_id = $user_id AND conversation_id IN $ids
		ORDER BY created_at ASC
	`, map[string]any{"user_id": userID, "ids": conversationIDs})
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return all(results), nil
}
