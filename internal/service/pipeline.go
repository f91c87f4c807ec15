package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/db"
	"github.com/raphaelgruber/profiled-go/internal/llm"
	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/raphaelgruber/profiled-go/internal/models"
	"github.com/raphaelgruber/profiled-go/internal/profile"
)

// Pipeline runs one memory processing job end to end: claim, select, filter,
// extract, merge, update profile, summarize.
type Pipeline struct {
	store      Store
	llm        llm.Completer
	summaryLLM llm.Completer
	cfg        Config
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewPipeline wires a pipeline. The metrics collector may be nil.
func NewPipeline(store Store, completer llm.Completer, cfg Config, collector *metrics.Collector, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      store,
		llm:        completer,
		summaryLLM: completer,
		cfg:        cfg.withDefaults(),
		metrics:    collector,
		logger:     logger,
	}
}

// WithSummaryCompleter routes summary generation to a different model, for
// setups that use a cheaper model for the digest.
func (p *Pipeline) WithSummaryCompleter(c llm.Completer) *Pipeline {
	p.summaryLLM = c
	return p
}

// convOutcome is what one conversation contributed to the batch.
type convOutcome struct {
	insights         map[string]any
	messageCount     int
	usedLLM          bool
	failedExtraction bool
}

// ProcessJob claims and runs the job. Calling it for a job that is already
// processing or terminal is a no-op; the claim is a compare-and-swap so two
// concurrent callers cannot both run the same job.
func (p *Pipeline) ProcessJob(ctx context.Context, jobID string) error {
	job, err := p.store.ClaimJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if job == nil {
		current, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if current == nil {
			return fmt.Errorf("job %s: %w", jobID, db.ErrNotFound)
		}
		p.logger.Info("job not claimable, nothing to do",
			"job_id", jobID, "status", current.Status)
		return nil
	}

	log := p.logger.With("job_id", jobID, "user_id", job.UserID)
	log.Info("job claimed", "batch_size", job.BatchSize)

	if err := p.run(ctx, log, job); err != nil {
		log.Error("job failed", "error", err)
		if p.metrics != nil {
			p.metrics.Inc(metrics.CounterJobsFailed)
		}
		if _, failErr := p.store.FailJob(ctx, jobID, err.Error()); failErr != nil {
			log.Error("could not mark job failed", "error", failErr)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.Inc(metrics.CounterJobsCompleted)
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, job *models.Job) error {
	jobID := models.MustRecordIDString(job.ID)
	userID := job.UserID

	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	conversations, err := p.selectConversations(ctx, userID, batchSize)
	if err != nil {
		return fmt.Errorf("select conversations: %w", err)
	}
	log.Info("conversations selected", "count", len(conversations))

	// The job was sized at trigger time, but the batch is recomputed after
	// the settle delay. Reconcile the total so processed never overtakes it
	// when conversations were created or ledgered in between.
	total := len(conversations)
	if err := p.store.SetJobTotal(ctx, jobID, total); err != nil {
		return fmt.Errorf("set job total: %w", err)
	}
	var (
		insightsList []map[string]any
		extracted    int
		skipped      int
		failed       int
		duplicates   int
		msgDelta     int
	)

	for i, conv := range conversations {
		convID := models.MustRecordIDString(conv.ID)

		outcome, err := p.processConversation(ctx, log, userID, convID)
		if err != nil {
			if errors.Is(err, db.ErrAlreadyAnalyzed) {
				duplicates++
				if p.metrics != nil {
					p.metrics.Inc(metrics.CounterDuplicateAttempts)
				}
				log.Info("conversation already analyzed, recording duplicate attempt",
					"conversation_id", convID)
				if dupErr := p.store.RecordDuplicateAttempt(ctx, userID, convID); dupErr != nil {
					log.Warn("could not record duplicate attempt", "error", dupErr)
				}
			} else {
				// Store-level failures abort the job; per-conversation LLM
				// failures are absorbed inside processConversation.
				return fmt.Errorf("conversation %s: %w", convID, err)
			}
		} else {
			switch {
			case outcome.insights != nil:
				extracted++
				msgDelta += outcome.messageCount
				insightsList = append(insightsList, outcome.insights)
				if p.metrics != nil {
					p.metrics.Inc(metrics.CounterExtracted)
				}
			case outcome.failedExtraction:
				failed++
				if p.metrics != nil {
					p.metrics.Inc(metrics.CounterFailed)
				}
			default:
				skipped++
				if p.metrics != nil {
					p.metrics.Inc(metrics.CounterSkipped)
				}
			}
		}

		processed := i + 1
		pct := processed * 100 / total
		if err := p.store.UpdateJobProgress(ctx, jobID, processed, pct); err != nil {
			log.Warn("could not update progress", "error", err)
		}

		if outcome.usedLLM && i < len(conversations)-1 && p.cfg.ExtractionDelay > 0 {
			select {
			case <-time.After(p.cfg.ExtractionDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	details := map[string]any{
		"extracted":          extracted,
		"skipped":            skipped,
		"failed":             failed,
		"duplicate_attempts": duplicates,
	}

	if len(insightsList) == 0 {
		log.Info("no insights extracted, leaving profile as is",
			"skipped", skipped, "failed", failed)
		if err := p.store.TouchProfile(ctx, userID); err != nil {
			log.Warn("could not touch profile", "error", err)
		}
		if err := p.store.MergeJobDetails(ctx, jobID, details); err != nil {
			log.Warn("could not write job details", "error", err)
		}
		_, err := p.store.CompleteJob(ctx, jobID, total)
		return err
	}

	merged, usedFallback, err := p.mergeIntoProfile(ctx, log, userID, insightsList)
	if err != nil {
		return err
	}
	details["merge_fallback"] = usedFallback

	updated, err := p.store.UpsertProfile(ctx, userID, merged, extracted, msgDelta)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	log.Info("profile updated",
		"version", updated.Version,
		"conversations", extracted,
		"messages", msgDelta)

	// Summary generation is best effort. The profile data is already
	// persisted; a stale or missing digest never fails the job.
	if err := p.updateSummary(ctx, userID, merged); err != nil {
		log.Warn("summary generation failed", "error", err)
		details["summary_error"] = err.Error()
	}

	if err := p.store.MergeJobDetails(ctx, jobID, details); err != nil {
		log.Warn("could not write job details", "error", err)
	}

	if _, err := p.store.CompleteJob(ctx, jobID, total); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	log.Info("job completed",
		"extracted", extracted, "skipped", skipped,
		"failed", failed, "duplicates", duplicates)
	return nil
}

// processConversation examines one conversation and writes exactly one ledger
// row for it. LLM and parse failures are recorded on the ledger and absorbed;
// only store failures propagate. Returns db.ErrAlreadyAnalyzed when another
// run got to the pair first.
func (p *Pipeline) processConversation(ctx context.Context, log *slog.Logger, userID, convID string) (convOutcome, error) {
	start := time.Now()

	messages, err := p.store.GetMessages(ctx, userID, []string{convID})
	if err != nil {
		return convOutcome{}, fmt.Errorf("get messages: %w", err)
	}

	rec := models.AnalysisRecord{
		UserID:         userID,
		ConversationID: convID,
		MessageCount:   len(messages),
	}

	if len(messages) < 2 {
		return p.ledgerSkip(ctx, rec, models.SkipTooShort, start, nil)
	}

	stats := AssessQuality(messages)
	score := stats.Score()
	rec.QualityScore = &score
	if !stats.Sufficient() {
		return p.ledgerSkip(ctx, rec, models.SkipInsufficientQuality, start, nil)
	}

	transcript := llm.BuildTranscript(messages)
	rec.TotalTokens = llm.EstimateTokens(transcript)
	if rec.TotalTokens > p.cfg.MaxTokensPerConv {
		return p.ledgerSkip(ctx, rec, models.SkipTooLong, start, nil)
	}

	llmStart := time.Now()
	response, err := p.llm.Complete(ctx, llm.ExtractionSystemPrompt, transcript)
	llmDur := time.Since(llmStart)
	if p.metrics != nil {
		inTokens := int64(llm.EstimateTokens(llm.ExtractionSystemPrompt) + rec.TotalTokens)
		p.metrics.RecordLLMUsage(metrics.OpLLMExtract, llmDur, inTokens, int64(llm.EstimateTokens(response)))
	}
	if err != nil {
		log.Warn("extraction call failed", "conversation_id", convID, "error", err)
		return p.ledgerFailure(ctx, rec, start, map[string]any{"error": err.Error()})
	}

	result := llm.ParseExtraction(response)
	switch result.Outcome {
	case llm.OutcomeInsights:
		rec.ProcessingStatus = models.ProcessingCompleted
		rec.AnalysisResult = result.Insights
		rec.ProcessingDurationMs = time.Since(start).Milliseconds()
		if _, err := p.store.CreateAnalysisRecord(ctx, rec); err != nil {
			return convOutcome{}, err
		}
		return convOutcome{
			insights:     result.Insights,
			messageCount: len(messages),
			usedLLM:      true,
		}, nil

	case llm.OutcomeSkip:
		log.Info("model declined extraction",
			"conversation_id", convID, "reason", result.SkipReason)
		return p.ledgerSkip(ctx, rec, models.SkipInsufficientQuality, start,
			map[string]any{"model_skip_reason": result.SkipReason})

	default: // llm.OutcomeParseFailure
		log.Warn("extraction response unparseable", "conversation_id", convID)
		return p.ledgerFailure(ctx, rec, start,
			map[string]any{"raw_response": truncate(result.Raw, 1000)})
	}
}

// ledgerSkip writes a skipped row. The returned outcome flags the LLM as used
// only when the skip came back from the model itself.
func (p *Pipeline) ledgerSkip(ctx context.Context, rec models.AnalysisRecord, reason models.SkipReason, start time.Time, meta map[string]any) (convOutcome, error) {
	rec.ProcessingStatus = models.ProcessingSkipped
	rec.SkipReason = &reason
	rec.ExtractionMetadata = meta
	rec.ProcessingDurationMs = time.Since(start).Milliseconds()
	if _, err := p.store.CreateAnalysisRecord(ctx, rec); err != nil {
		return convOutcome{}, err
	}
	return convOutcome{usedLLM: meta != nil}, nil
}

// ledgerFailure writes a failed row with skip reason processing_error.
func (p *Pipeline) ledgerFailure(ctx context.Context, rec models.AnalysisRecord, start time.Time, meta map[string]any) (convOutcome, error) {
	reason := models.SkipProcessingError
	rec.ProcessingStatus = models.ProcessingFailed
	rec.SkipReason = &reason
	rec.ExtractionMetadata = meta
	rec.ProcessingDurationMs = time.Since(start).Milliseconds()
	if _, err := p.store.CreateAnalysisRecord(ctx, rec); err != nil {
		return convOutcome{}, err
	}
	return convOutcome{failedExtraction: true, usedLLM: true}, nil
}

// mergeIntoProfile folds the batch insights together, then consolidates them
// with the existing profile through the LLM. A merge response that fails to
// parse falls back to the programmatic deep merge so insights are never lost.
func (p *Pipeline) mergeIntoProfile(ctx context.Context, log *slog.Logger, userID string, insightsList []map[string]any) (map[string]any, bool, error) {
	batch := profile.MergeMaps(insightsList...)

	existing, err := p.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("get profile: %w", err)
	}
	if existing == nil || len(existing.ProfileData) == 0 {
		return batch, false, nil
	}

	prompt, err := llm.BuildMergePrompt(existing.ProfileData, batch)
	if err != nil {
		return nil, false, fmt.Errorf("build merge prompt: %w", err)
	}

	llmStart := time.Now()
	response, err := p.llm.Complete(ctx, llm.MergeSystemPrompt, prompt)
	llmDur := time.Since(llmStart)
	if p.metrics != nil {
		inTokens := int64(llm.EstimateTokens(llm.MergeSystemPrompt) + llm.EstimateTokens(prompt))
		p.metrics.RecordLLMUsage(metrics.OpLLMMerge, llmDur, inTokens, int64(llm.EstimateTokens(response)))
	}
	if err != nil {
		log.Warn("merge call failed, falling back to programmatic merge", "error", err)
		return profile.MergeMaps(existing.ProfileData, batch), true, nil
	}

	merged, ok := llm.ParseMerge(response)
	if !ok {
		log.Warn("merge response unparseable, falling back to programmatic merge")
		return profile.MergeMaps(existing.ProfileData, batch), true, nil
	}
	return merged, false, nil
}

// updateSummary regenerates the natural language digest from merged data.
func (p *Pipeline) updateSummary(ctx context.Context, userID string, data map[string]any) error {
	prompt, err := llm.BuildSummaryPrompt(data)
	if err != nil {
		return fmt.Errorf("build summary prompt: %w", err)
	}

	llmStart := time.Now()
	summary, err := p.summaryLLM.Complete(ctx, llm.SummarySystemPrompt, prompt)
	llmDur := time.Since(llmStart)
	if p.metrics != nil {
		inTokens := int64(llm.EstimateTokens(llm.SummarySystemPrompt) + llm.EstimateTokens(prompt))
		p.metrics.RecordLLMUsage(metrics.OpLLMSummary, llmDur, inTokens, int64(llm.EstimateTokens(summary)))
	}
	if err != nil {
		return err
	}
	if _, err := p.store.SetProfileSummary(ctx, userID, summary); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
