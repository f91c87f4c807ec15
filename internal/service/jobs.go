package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/models"
)

// processTimeout bounds a detached job run. Generous because extraction is
// sequential and rate limited.
const processTimeout = 30 * time.Minute

// JobManager creates jobs and launches their processing in the background.
// Job state itself lives in the store; the manager only tracks which jobs
// this process is currently running so a local double trigger is caught
// before it even reaches the claim.
type JobManager struct {
	store    Store
	pipeline *Pipeline
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewJobManager creates a job manager around a pipeline.
func NewJobManager(store Store, pipeline *Pipeline, cfg Config, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		store:    store,
		pipeline: pipeline,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		running:  make(map[string]struct{}),
	}
}

// Trigger creates a job for the user and starts processing it in the
// background. It returns as soon as the job row exists; callers poll the job
// endpoint for progress.
func (m *JobManager) Trigger(ctx context.Context, userID string, batchSize int) (*models.Job, error) {
	if batchSize <= 0 {
		batchSize = m.cfg.BatchSize
	}

	total, err := countPending(ctx, m.store, userID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}

	job, err := m.store.CreateJob(ctx, userID, total, batchSize)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	jobID := models.MustRecordIDString(job.ID)
	m.logger.Info("job created",
		"job_id", jobID, "user_id", userID, "total", total)

	m.launch(jobID)
	return job, nil
}

// Process starts background processing for an existing job. Safe to call for
// jobs that are already processing or terminal; the claim decides.
func (m *JobManager) Process(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	if job.Terminal() {
		m.logger.Info("job already terminal, not restarting",
			"job_id", jobID, "status", job.Status)
		return job, nil
	}

	m.launch(jobID)
	return job, nil
}

// launch runs the pipeline for the job in a goroutine, detached from the
// request context. At most one run per job id per process.
func (m *JobManager) launch(jobID string) {
	m.mu.Lock()
	if _, active := m.running[jobID]; active {
		m.mu.Unlock()
		m.logger.Info("job already running in this process", "job_id", jobID)
		return
	}
	m.running[jobID] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.running, jobID)
			m.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		if err := m.pipeline.ProcessJob(ctx, jobID); err != nil {
			m.logger.Error("background job processing failed",
				"job_id", jobID, "error", err)
		}
	}()
}

// GetJob retrieves a job from the store.
func (m *JobManager) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return m.store.GetJob(ctx, jobID)
}

// ListJobs returns jobs most recent first, optionally filtered by user.
func (m *JobManager) ListJobs(ctx context.Context, userID *string, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.store.ListJobs(ctx, userID, limit)
}
