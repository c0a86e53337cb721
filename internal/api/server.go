// Package api exposes the HTTP interface for the content generation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/approval"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/metrics"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/orchestrator"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/status"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router   chi.Router
	store    store.PageStore
	orch     *orchestrator.Orchestrator
	reporter *status.Reporter
	gate     *approval.Gate
	idGen    pipeline.IDGenerator
	clock    pipeline.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	pages store.PageStore,
	orch *orchestrator.Orchestrator,
	reporter *status.Reporter,
	gate *approval.Gate,
	idGen pipeline.IDGenerator,
	clock pipeline.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:    pages,
		orch:     orch,
		reporter: reporter,
		gate:     gate,
		idGen:    idGen,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(cfg.ServerTimeout()))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/projects/{project_id}", func(r chi.Router) {
			r.Post("/pages", s.createPages)
			r.Route("/content", func(r chi.Router) {
				r.Post("/generate", s.generate)
				r.Post("/regenerate", s.regenerate)
				r.Get("/status", s.getStatus)
				r.Post("/approve", s.bulkApprove)
				r.Post("/pages/{page_id}/approve", s.approvePage)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createPagesRequest struct {
	Pages []pageRequest `json:"pages"`
}

type pageRequest struct {
	PageID  string `json:"page_id"`
	Keyword string `json:"keyword"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

func (s *Server) createPages(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	var req createPagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Pages) == 0 {
		writeError(w, http.StatusBadRequest, "at least one page required")
		return
	}

	now := s.clock.Now()
	records := make([]pipeline.PageRecord, 0, len(req.Pages))
	ids := make([]string, 0, len(req.Pages))
	for _, p := range req.Pages {
		if strings.TrimSpace(p.Keyword) == "" {
			writeError(w, http.StatusBadRequest, "every page requires a keyword")
			return
		}
		pageID := p.PageID
		if pageID == "" {
			id, err := s.idGen.NewID()
			if err != nil {
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate page id: %v", err))
				return
			}
			pageID = id
		}
		record := pipeline.NewPageRecord(projectID, pageID, p.Keyword, now)
		record.URL = p.URL
		record.Title = p.Title
		records = append(records, record)
		ids = append(ids, pageID)
	}

	if err := s.store.CreatePages(r.Context(), records); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"project_id": projectID,
		"page_ids":   ids,
	})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := s.orch.Start(r.Context(), projectID); err != nil {
		s.writeOrchestratorError(w, projectID, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"project_id": projectID,
		"state":      string(status.StateGenerating),
	})
}

type regenerateRequest struct {
	RefreshBriefs bool `json:"refresh_briefs"`
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	var req regenerateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if err := s.orch.Regenerate(r.Context(), projectID, req.RefreshBriefs); err != nil {
		s.writeOrchestratorError(w, projectID, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"project_id":     projectID,
		"state":          string(status.StateGenerating),
		"refresh_briefs": req.RefreshBriefs,
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	snap, err := s.reporter.Snapshot(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) bulkApprove(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	n, err := s.gate.BulkApprove(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id":     projectID,
		"approved_count": n,
	})
}

func (s *Server) approvePage(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page_id")
	if err := s.gate.Approve(r.Context(), pageID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "page not found")
		case errors.Is(err, approval.ErrNotEligible):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page_id":  pageID,
		"approved": true,
	})
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, projectID string, err error) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("batch admission failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
		metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, elapsed)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
