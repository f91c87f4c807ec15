// Package models defines data structures for the profiled memory pipeline.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobTypeMemoryProcessing is the only job type currently produced.
// The field exists so future job kinds can share the job table.
const JobTypeMemoryProcessing = "memory_processing"

// DefaultBatchSize caps how many conversations one job invocation examines.
const DefaultBatchSize = 10

// Job represents one bounded unit of batch work for a single user.
// Status transitions are owned exclusively by the worker that claims the job;
// terminal states are never re-opened.
type Job struct {
	ID                     surrealmodels.RecordID `json:"id"`
	UserID                 string                 `json:"user_id"`
	JobType                string                 `json:"job_type"`
	Status                 JobStatus              `json:"status"`
	TotalConversations     int                    `json:"total_conversations"`
	ProcessedConversations int                    `json:"processed_conversations"`
	ProgressPercentage     int                    `json:"progress_percentage"`
	BatchSize              int                    `json:"batch_size"`
	Error                  *string                `json:"error,omitempty"`
	ProcessingDetails      map[string]any         `json:"processing_details,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	StartedAt              *time.Time             `json:"started_at,omitempty"`
	CompletedAt            *time.Time             `json:"completed_at,omitempty"`
}

// Terminal reports whether the job is in a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
