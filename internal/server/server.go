package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TobiSchelling/redditpersona/internal/analyze"
	"github.com/TobiSchelling/redditpersona/internal/metrics"
	"github.com/TobiSchelling/redditpersona/internal/pipeline"
	"github.com/TobiSchelling/redditpersona/internal/reddit"
	"github.com/TobiSchelling/redditpersona/internal/report"
)

const defaultListLimit = 50

// Server is the HTTP API over the persona pipeline.
type Server struct {
	router   *chi.Mux
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// New creates a Server. m may be nil, in which case /metrics is not served.
func New(p *pipeline.Pipeline, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	s := &Server{router: router, pipeline: p, logger: logger}

	router.Get("/health", s.health)
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}
	router.Get("/personas/{username}", s.personaPage)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Get("/personas", s.listPersonas)
		r.Get("/personas/{username}", s.getPersona)
		r.Post("/personas/{username}", s.ensurePersona)
		r.Get("/personas/{username}/complete", s.personaComplete)
		r.Get("/snapshots/{username}", s.getSnapshot)
		r.Post("/snapshots/{username}", s.fetchSnapshot)
	})

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"snapshots": stats.Snapshots,
		"personas":  stats.Personas,
	})
}

func (s *Server) listPersonas(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid limit %q", v)})
			return
		}
		limit = n
	}
	names, err := s.pipeline.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"usernames": names})
}

func (s *Server) getPersona(w http.ResponseWriter, r *http.Request) {
	rec, err := s.pipeline.Persona(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "", report.FormatJSON:
		writeJSON(w, http.StatusOK, rec)
	case report.FormatMarkdown, "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_ = report.Write(w, rec, format)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown format %q", format)})
	}
}

func (s *Server) ensurePersona(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	rec, err := s.pipeline.Ensure(r.Context(), chi.URLParam(r, "username"), refresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) personaComplete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	complete, err := s.pipeline.IsPersonaComplete(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": username, "complete": complete})
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.Snapshot(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) fetchSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.FetchAndStore(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": snap.Username,
		"posts":    len(snap.Posts),
		"comments": len(snap.Comments),
	})
}

func (s *Server) personaPage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.pipeline.Persona(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
		return
	}
	page, err := report.HTML(rec)
	if err != nil {
		s.logger.Error("rendering persona page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  pipeline.Outcome(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidUsername):
		return http.StatusBadRequest
	case errors.Is(err, reddit.ErrNotFound),
		errors.Is(err, pipeline.ErrNotFound),
		errors.Is(err, pipeline.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrUpstreamFetch):
		return http.StatusBadGateway
	case errors.Is(err, analyze.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrAnalysis):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
