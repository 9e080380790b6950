// Package devserver is a local stand-in for the R&D study endpoints. It
// analyzes uploads with an ai.Provider and keeps imported records in memory.
package devserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/ai"
)

const (
	maxUploadBytes = 32 << 20
	previewRows    = 5
	sampleValues   = 3
)

type Server struct {
	router    chi.Router
	provider  ai.Provider
	validator *requestValidator
	records   *recordStore
	token     string
	logger    *slog.Logger
}

// New builds a server. An empty token accepts any bearer token.
func New(provider ai.Provider, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		router:    chi.NewRouter(),
		provider:  provider,
		validator: newRequestValidator(),
		records:   newRecordStore(),
		token:     token,
		logger:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/rd-study/studies/{studyID}", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/upload/analyze", s.handleAnalyze)
		r.Post("/upload/import", s.handleImport)
		r.Get("/employees", s.handleList("employees"))
		r.Get("/projects", s.handleList("projects"))
		r.Get("/expenses", s.handleList("expenses"))
	})

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || scheme != "Bearer" || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if s.token != "" && token != s.token {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body the way the production API does:
// {"detail": <string or list>}.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
