package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/raphaelgruber/profiled-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type fakeJobs struct {
	jobs map[string]*models.Job
}

func (f *fakeJobs) Trigger(ctx context.Context, userID string, batchSize int) (*models.Job, error) {
	job := &models.Job{
		ID:        surrealmodels.RecordID{Table: "job", ID: "job-new"},
		UserID:    userID,
		Status:    models.JobStatusPending,
		BatchSize: batchSize,
		CreatedAt: time.Now(),
	}
	f.jobs["job-new"] = job
	return job, nil
}

func (f *fakeJobs) Process(ctx context.Context, jobID string) (*models.Job, error) {
	return f.jobs[jobID], nil
}

func (f *fakeJobs) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return f.jobs[jobID], nil
}

func (f *fakeJobs) ListJobs(ctx context.Context, userID *string, limit int) ([]models.Job, error) {
	var out []models.Job
	for _, j := range f.jobs {
		if userID == nil || j.UserID == *userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	profiles map[string]*models.Profile
	convs    int
	messages []string
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return f.profiles[userID], nil
}

func (f *fakeProfiles) CreateConversation(ctx context.Context, userID string, title *string, createdAt *time.Time) (*models.Conversation, error) {
	f.convs++
	return &models.Conversation{
		ID:     surrealmodels.RecordID{Table: "conversation", ID: "conv-1"},
		UserID: userID,
		Title:  title,
	}, nil
}

func (f *fakeProfiles) CreateMessage(ctx context.Context, userID, conversationID, role, content string, createdAt *time.Time) (*models.Message, error) {
	f.messages = append(f.messages, content)
	return &models.Message{
		ID:             surrealmodels.RecordID{Table: "message", ID: "msg"},
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
	}, nil
}

func newTestServer() (*Server, *fakeJobs, *fakeProfiles) {
	jobs := &fakeJobs{jobs: make(map[string]*models.Job)}
	profiles := &fakeProfiles{profiles: make(map[string]*models.Profile)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(jobs, profiles, metrics.NewCollector(), logger, "test"), jobs, profiles
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestCreateJobValidation(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader([]byte("{broken")))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateJobAccepted(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs", map[string]any{
		"user_id":    "alice",
		"batch_size": 5,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["user_id"])
	assert.Equal(t, string(models.JobStatusPending), body["status"])
}

func TestGetJobNotFound(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCompletedJobEmbedsProfile(t *testing.T) {
	s, jobs, profiles := newTestServer()
	jobs.jobs["done"] = &models.Job{
		ID:     surrealmodels.RecordID{Table: "job", ID: "done"},
		UserID: "alice",
		Status: models.JobStatusCompleted,
	}
	profiles.profiles["alice"] = &models.Profile{
		ID:      surrealmodels.RecordID{Table: "profile", ID: "alice"},
		UserID:  "alice",
		Version: 3,
		ProfileData: map[string]any{
			"expertise": []any{"go"},
		},
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/done", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string          `json:"status"`
		Profile *models.Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Profile)
	assert.Equal(t, 3, body.Profile.Version)
}

func TestGetRunningJobOmitsProfile(t *testing.T) {
	s, jobs, _ := newTestServer()
	jobs.jobs["running"] = &models.Job{
		ID:     surrealmodels.RecordID{Table: "job", ID: "running"},
		UserID: "alice",
		Status: models.JobStatusProcessing,
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/running", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	_, hasProfile := body["profile"]
	assert.False(t, hasProfile)
}

func TestProcessJobStatusCodes(t *testing.T) {
	s, jobs, _ := newTestServer()
	jobs.jobs["pending"] = &models.Job{
		ID:     surrealmodels.RecordID{Table: "job", ID: "pending"},
		Status: models.JobStatusPending,
	}
	jobs.jobs["finished"] = &models.Job{
		ID:     surrealmodels.RecordID{Table: "job", ID: "finished"},
		Status: models.JobStatusCompleted,
	}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs/pending/process", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/jobs/finished/process", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/jobs/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsFilter(t *testing.T) {
	s, jobs, _ := newTestServer()
	jobs.jobs["a"] = &models.Job{ID: surrealmodels.RecordID{Table: "job", ID: "a"}, UserID: "alice"}
	jobs.jobs["b"] = &models.Job{ID: surrealmodels.RecordID{Table: "job", ID: "b"}, UserID: "bob"}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/jobs?user_id=alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "alice", body.Jobs[0].UserID)
}

func TestCreateConversation(t *testing.T) {
	s, _, profiles := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/conversations", map[string]any{
		"user_id": "alice",
		"title":   "goroutine leak",
		"messages": []map[string]string{
			{"role": "user", "content": "my goroutines leak"},
			{"role": "assistant", "content": "show me the code"},
		},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, profiles.convs)
	assert.Len(t, profiles.messages, 2)
}

func TestCreateConversationInvalidRole(t *testing.T) {
	s, _, profiles := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/conversations", map[string]any{
		"user_id": "alice",
		"messages": []map[string]string{
			{"role": "bot", "content": "hi"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, profiles.convs)
}

func TestGetProfile(t *testing.T) {
	s, _, profiles := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/users/alice/profile", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	profiles.profiles["alice"] = &models.Profile{
		ID:     surrealmodels.RecordID{Table: "profile", ID: "alice"},
		UserID: "alice",
	}
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/users/alice/profile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}
