// Package api exposes the generation pipeline over HTTP. Identity arrives
// from the surrounding web application: a bearer token scopes the API, and the
// X-Patient-ID header carries the session identity for patient-owned
// operations.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/souldiary/notegen/internal/pipeline"
	"github.com/souldiary/notegen/internal/prompt"
	"github.com/souldiary/notegen/internal/store"
	"github.com/souldiary/notegen/internal/summary"
)

// Pipeline is the orchestrator surface the server needs.
type Pipeline interface {
	Submit(ctx context.Context, patientID uuid.UUID, text string, wantSupport bool) (uuid.UUID, error)
	Status(ctx context.Context, entryID uuid.UUID) (pipeline.Status, error)
	RegenerateClinical(ctx context.Context, entryID uuid.UUID) (string, error)
}

// Summaries is the case-summary surface.
type Summaries interface {
	Generate(ctx context.Context, patientID, clinicianID uuid.UUID, period summary.Period) (store.CaseSummary, error)
}

// EntryStore is the direct persistence surface for operations the pipeline
// does not mediate.
type EntryStore interface {
	GetEntry(ctx context.Context, id uuid.UUID) (store.Entry, error)
	DeleteEntry(ctx context.Context, id, patientID uuid.UUID) error
	UpdateAnnotation(ctx context.Context, id uuid.UUID, note string) error
	GetPreferences(ctx context.Context, clinicianID uuid.UUID) (prompt.Preferences, error)
	SavePreferences(ctx context.Context, clinicianID uuid.UUID, prefs prompt.Preferences) error
}

type Server struct {
	router    *chi.Mux
	port      int
	pipeline  Pipeline
	summaries Summaries
	store     EntryStore
	logger    *slog.Logger
}

func NewServer(port int, apiToken string, p Pipeline, sum Summaries, es EntryStore, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		pipeline:  p,
		summaries: sum,
		store:     es,
		logger:    logger,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Post("/entries", s.submitEntry)
		r.Get("/entries/{id}", s.getEntry)
		r.Get("/entries/{id}/status", s.entryStatus)
		r.Post("/entries/{id}/regenerate", s.regenerateEntry)
		r.Put("/entries/{id}/annotation", s.updateAnnotation)
		r.Delete("/entries/{id}", s.deleteEntry)

		r.Get("/clinicians/{id}/preferences", s.getPreferences)
		r.Put("/clinicians/{id}/preferences", s.savePreferences)

		r.Post("/summaries", s.createSummary)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests without the configured token. An
// empty token disables auth (local development).
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				header := r.Header.Get("Authorization")
				if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != token {
					writeError(w, http.StatusUnauthorized, "invalid or missing token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

func headerUUID(r *http.Request, header string) (uuid.UUID, error) {
	v := r.Header.Get(header)
	if v == "" {
		return uuid.Nil, fmt.Errorf("missing %s header", header)
	}
	return uuid.Parse(v)
}

func parseUUIDField(v, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", field)
	}
	return id, nil
}
