package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/db"
	"github.com/raphaelgruber/profiled-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// fakeStore is an in-memory Store for pipeline tests.
type fakeStore struct {
	mu sync.Mutex

	jobs          map[string]*models.Job
	analyses      map[string]*models.AnalysisRecord
	profiles      map[string]*models.Profile
	conversations map[string][]models.Conversation
	messages      map[string][]models.Message

	progressLog []int // percentages in write order

	jobSeq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:          make(map[string]*models.Job),
		analyses:      make(map[string]*models.AnalysisRecord),
		profiles:      make(map[string]*models.Profile),
		conversations: make(map[string][]models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func rid(table, id string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: table, ID: id}
}

// addConversation seeds a conversation with generated messages. userChars is
// spread across the user messages.
func (s *fakeStore) addConversation(userID, convID string, numMessages, numUserMessages, userChars int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := time.Now().Add(-time.Duration(len(s.conversations[userID])) * time.Hour)
	conv := models.Conversation{
		ID:        rid("conversation", convID),
		UserID:    userID,
		CreatedAt: created,
	}
	// Keep most recent first, like the real listing.
	s.conversations[userID] = append([]models.Conversation{conv}, s.conversations[userID]...)

	perUser := 0
	if numUserMessages > 0 {
		perUser = userChars / numUserMessages
	}
	userLeft := numUserMessages
	for i := 0; i < numMessages; i++ {
		role := models.RoleAssistant
		content := "assistant reply"
		if userLeft > 0 && i%2 == 0 {
			role = models.RoleUser
			content = strings.Repeat("x", perUser)
			userLeft--
		}
		s.messages[convID] = append(s.messages[convID], models.Message{
			ID:             rid("message", fmt.Sprintf("%s-m%d", convID, i)),
			ConversationID: convID,
			UserID:         userID,
			Role:           role,
			Content:        content,
			CreatedAt:      created.Add(time.Duration(i) * time.Minute),
		})
	}
}

func (s *fakeStore) CreateJob(ctx context.Context, userID string, total, batchSize int) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobSeq++
	id := fmt.Sprintf("job-%d", s.jobSeq)
	job := &models.Job{
		ID:                 rid("job", id),
		UserID:             userID,
		JobType:            models.JobTypeMemoryProcessing,
		Status:             models.JobStatusPending,
		TotalConversations: total,
		BatchSize:          batchSize,
		CreatedAt:          time.Now(),
	}
	s.jobs[id] = job
	out := *job
	return &out, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := *job
	return &out, nil
}

func (s *fakeStore) ListJobs(ctx context.Context, userID *string, limit int) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, job := range s.jobs {
		if userID == nil || job.UserID == *userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *fakeStore) ClaimJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusPending {
		return nil, nil
	}
	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	out := *job
	return &out, nil
}

func (s *fakeStore) SetJobTotal(ctx context.Context, id string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return db.ErrNotFound
	}
	job.TotalConversations = total
	return nil
}

func (s *fakeStore) UpdateJobProgress(ctx context.Context, id string, processed, percentage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return db.ErrNotFound
	}
	job.ProcessedConversations = processed
	job.ProgressPercentage = percentage
	s.progressLog = append(s.progressLog, percentage)
	return nil
}

func (s *fakeStore) MergeJobDetails(ctx context.Context, id string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return db.ErrNotFound
	}
	if job.ProcessingDetails == nil {
		job.ProcessingDetails = make(map[string]any)
	}
	for k, v := range details {
		job.ProcessingDetails[k] = v
	}
	return nil
}

func (s *fakeStore) CompleteJob(ctx context.Context, id string, processed int) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.ProcessedConversations = processed
	job.ProgressPercentage = 100
	job.CompletedAt = &now
	out := *job
	return &out, nil
}

func (s *fakeStore) FailJob(ctx context.Context, id string, errMsg string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	now := time.Now()
	job.Status = models.JobStatusFailed
	job.Error = &errMsg
	job.CompletedAt = &now
	out := *job
	return &out, nil
}

func (s *fakeStore) CreateAnalysisRecord(ctx context.Context, rec models.AnalysisRecord) (*models.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.AnalysisRecordID(rec.UserID, rec.ConversationID)
	if _, exists := s.analyses[id]; exists {
		return nil, fmt.Errorf("%w: analysis %s", db.ErrAlreadyAnalyzed, id)
	}
	rec.ID = rid("analysis", id)
	rec.CreatedAt = time.Now()
	s.analyses[id] = &rec
	out := rec
	return &out, nil
}

func (s *fakeStore) GetAnalysisRecord(ctx context.Context, userID, conversationID string) (*models.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.analyses[models.AnalysisRecordID(userID, conversationID)]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (s *fakeStore) ListAnalyzedConversationIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, rec := range s.analyses {
		if rec.UserID == userID {
			ids = append(ids, rec.ConversationID)
		}
	}
	return ids, nil
}

func (s *fakeStore) RecordDuplicateAttempt(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.analyses[models.AnalysisRecordID(userID, conversationID)]
	if !ok {
		return nil
	}
	if rec.ExtractionMetadata == nil {
		rec.ExtractionMetadata = make(map[string]any)
	}
	n, _ := rec.ExtractionMetadata["duplicate_attempts"].(int)
	rec.ExtractionMetadata["duplicate_attempts"] = n + 1
	return nil
}

func (s *fakeStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (s *fakeStore) UpsertProfile(ctx context.Context, userID string, data map[string]any, convDelta, msgDelta int) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &models.Profile{
			ID:        rid("profile", userID),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		s.profiles[userID] = p
	}
	p.ProfileData = data
	p.ConversationCount += convDelta
	p.MessageCount += msgDelta
	p.Version++
	p.UpdatedAt = time.Now()
	out := *p
	return &out, nil
}

func (s *fakeStore) TouchProfile(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (s *fakeStore) SetProfileSummary(ctx context.Context, userID, summary string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	p.AISummary = &summary
	p.AISummaryVersion++
	now := time.Now()
	p.AISummaryUpdated = &now
	p.Version++
	p.UpdatedAt = now
	out := *p
	return &out, nil
}

func (s *fakeStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Conversation(nil), s.conversations[userID]...), nil
}

func (s *fakeStore) GetMessages(ctx context.Context, userID string, conversationIDs []string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, id := range conversationIDs {
		out = append(out, s.messages[id]...)
	}
	return out, nil
}

var _ Store = (*fakeStore)(nil)

// fakeCompleter returns scripted responses keyed by system prompt, so a test
// can control extraction, merge and summary independently.
type fakeCompleter struct {
	mu sync.Mutex

	extractResponses []string // consumed in order
	extractErr       error
	mergeResponse    string
	mergeErr         error
	summaryResponse  string
	summaryErr       error

	extractCalls int
	mergeCalls   int
	summaryCalls int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.Contains(systemPrompt, "memory extraction") {
		f.extractCalls++
		if f.extractErr != nil {
			return "", f.extractErr
		}
		if len(f.extractResponses) == 0 {
			return `{"insights": {}}`, nil
		}
		resp := f.extractResponses[0]
		f.extractResponses = f.extractResponses[1:]
		return resp, nil
	}
	if strings.Contains(systemPrompt, "memory consolidation") {
		f.mergeCalls++
		if f.mergeErr != nil {
			return "", f.mergeErr
		}
		return f.mergeResponse, nil
	}
	f.summaryCalls++
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	if f.summaryResponse == "" {
		return "A short summary of the user.", nil
	}
	return f.summaryResponse, nil
}
