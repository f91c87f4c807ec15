// Package server provides the HTTP API for triggering and inspecting memory
// processing jobs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/profiled-go/internal/db"
	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/raphaelgruber/profiled-go/internal/models"
)

// JobService is what the handlers need from the job manager.
type JobService interface {
	Trigger(ctx context.Context, userID string, batchSize int) (*models.Job, error)
	Process(ctx context.Context, jobID string) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, userID *string, limit int) ([]models.Job, error)
}

// ProfileStore is the subset of persistence the handlers reach directly.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateConversation(ctx context.Context, userID string, title *string, createdAt *time.Time) (*models.Conversation, error)
	CreateMessage(ctx context.Context, userID, conversationID, role, content string, createdAt *time.Time) (*models.Message, error)
}

// Server holds the router and its dependencies.
type Server struct {
	router  chi.Router
	jobs    JobService
	store   ProfileStore
	metrics *metrics.Collector
	logger  *slog.Logger
	version string
}

// New builds the HTTP server. The metrics collector may be nil, in which case
// /api/stats reports an empty snapshot.
func New(jobs JobService, store ProfileStore, collector *metrics.Collector, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		jobs:    jobs,
		store:   store,
		metrics: collector,
		logger:  logger,
		version: version,
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/process", s.handleProcessJob)
		r.Post("/conversations", s.handleCreateConversation)
		r.Get("/users/{id}/profile", s.handleGetProfile)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// jobResponse is a job plus the profile it produced, embedded once the job
// is done so pollers get both in one round trip.
type jobResponse struct {
	*models.Job
	Profile *models.Profile `json:"profile,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

type createJobRequest struct {
	UserID    string `json:"user_id"`
	BatchSize int    `json:"batch_size"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	job, err := s.jobs.Trigger(r.Context(), req.UserID, req.BatchSize)
	if err != nil {
		s.logger.Error("job trigger failed", "user_id", req.UserID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	// Processing continues in the background; 202 signals "accepted, poll me".
	s.respond(w, http.StatusAccepted, jobResponse{Job: job})
}

func (s *Server) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := s.jobs.Process(r.Context(), jobID)
	if err != nil {
		s.logger.Error("job process failed", "job_id", jobID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not process job")
		return
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	// Terminal jobs are reported as-is; re-processing them is a no-op.
	status := http.StatusAccepted
	if job.Terminal() {
		status = http.StatusOK
	}
	s.respond(w, status, jobResponse{Job: job})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		s.logger.Error("job lookup failed", "job_id", jobID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobResponse{Job: job}
	if job.Status == models.JobStatusCompleted {
		profile, err := s.store.GetProfile(r.Context(), job.UserID)
		if err != nil {
			s.logger.Warn("profile embed failed", "user_id", job.UserID, "error", err)
		} else {
			resp.Profile = profile
		}
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var userID *string
	if v := r.URL.Query().Get("user_id"); v != "" {
		userID = &v
	}

	jobs, err := s.jobs.ListJobs(r.Context(), userID, 50)
	if err != nil {
		s.logger.Error("job listing failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not list jobs")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type createConversationRequest struct {
	UserID   string  `json:"user_id"`
	Title    *string `json:"title"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	for _, m := range req.Messages {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant && m.Role != models.RoleSystem {
			s.respondError(w, http.StatusBadRequest, "invalid message role: "+m.Role)
			return
		}
	}

	conv, err := s.store.CreateConversation(r.Context(), req.UserID, req.Title, nil)
	if err != nil {
		s.logger.Error("conversation create failed", "user_id", req.UserID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not create conversation")
		return
	}

	convID := models.MustRecordIDString(conv.ID)
	for _, m := range req.Messages {
		if _, err := s.store.CreateMessage(r.Context(), req.UserID, convID, m.Role, m.Content, nil); err != nil {
			s.logger.Error("message create failed", "conversation_id", convID, "error", err)
			s.respondError(w, http.StatusInternalServerError, "could not store messages")
			return
		}
	}

	s.respond(w, http.StatusCreated, map[string]any{
		"conversation": conv,
		"messages":     len(req.Messages),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error("profile lookup failed", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	if profile == nil {
		s.respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	s.respond(w, http.StatusOK, profile)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.respond(w, http.StatusOK, metrics.Snapshot{})
		return
	}
	s.respond(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}
