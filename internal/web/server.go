package web

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/prepcards/internal/cardstore"
	"github.com/conorfennell/prepcards/internal/logger"
	"github.com/conorfennell/prepcards/internal/sm2"
	"github.com/conorfennell/prepcards/internal/study"
	"github.com/conorfennell/prepcards/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc       *study.Service
	syncer    *sync.Syncer // nil disables the source routes
	log       *logger.Logger
	router    *http.ServeMux
	templates *template.Template
	now       func() time.Time
}

// NewServer creates and configures a new server.
func NewServer(svc *study.Service, syncer *sync.Syncer, log *logger.Logger) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		svc:       svc,
		syncer:    syncer,
		log:       log.With("component", "web"),
		router:    http.NewServeMux(),
		templates: tpl,
		now:       svc.Now,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create sub-filesystem for static assets: %w", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	s.router.HandleFunc("GET /{$}", s.handleGetDeck())

	s.router.HandleFunc("GET /api/flashcards", s.handleListCards())
	s.router.HandleFunc("GET /api/flashcards/due", s.handleDueCards())
	s.router.HandleFunc("POST /api/flashcards/review", s.handlePostReview())
	s.router.HandleFunc("GET /api/flashcards/categories", s.handleCategories())
	s.router.HandleFunc("GET /api/flashcards/stats", s.handleStats())
	s.router.HandleFunc("GET /api/progress", s.handleProgress())

	if s.syncer != nil {
		s.router.HandleFunc("GET /api/sources", s.handleGetSources())
		s.router.HandleFunc("POST /api/sources", s.handlePostSource())
		s.router.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource())
		s.router.HandleFunc("POST /api/sync", s.handlePostSync())
	}
	return nil
}

// handleGetDeck renders the deck page with per-category due counts.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.now()
		store := s.svc.Store()
		data := map[string]interface{}{
			"Stats":      store.Stats(now),
			"Categories": store.CategoryStats(now),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.templates.ExecuteTemplate(w, "deck", data); err != nil {
			s.log.Error("failed to render deck", "error", err)
		}
	}
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards := s.svc.Store().List(r.URL.Query().Get("category"))
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"cards": nonNil(cards),
			"count": len(cards),
		})
	}
}

// handleDueCards returns the due cards in random order.
func (s *Server) handleDueCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := study.QueueOptions{
			Category: r.URL.Query().Get("category"),
			Shuffle:  true,
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
				return
			}
			opts.Limit = n
		}
		cards := s.svc.Queue(opts, s.now())
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"cards": nonNil(cards),
			"count": len(cards),
		})
	}
}

type reviewRequest struct {
	CardID  *int `json:"card_id"`
	Quality *int `json:"quality"`
}

// handlePostReview rates a card and reports its next review time.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON with card_id and quality")
			return
		}
		if req.CardID == nil || req.Quality == nil {
			s.writeError(w, http.StatusBadRequest, "invalid_body", "card_id and quality are required")
			return
		}
		q := sm2.Quality(*req.Quality)
		if !q.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid_rating", fmt.Sprintf("invalid rating %d: quality must be 0-5", *req.Quality))
			return
		}

		card, err := s.svc.Review(r.Context(), *req.CardID, q, s.now())
		switch {
		case errors.Is(err, cardstore.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "not_found", "Card not found")
			return
		case errors.Is(err, cardstore.ErrInvalidQuality):
			s.writeError(w, http.StatusBadRequest, "invalid_rating", err.Error())
			return
		case err != nil:
			s.log.Error("review failed", "card_id", *req.CardID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "persistence", "failed to save review")
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"next_review": card.NextReview,
			"card":        card,
		})
	}
}

func (s *Server) handleCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"categories": nonNil(s.svc.Store().Categories()),
			"counts":     nonNil(s.svc.Store().CategoryStats(s.now())),
		})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.Store().Stats(s.now()))
	}
}

func (s *Server) handleProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.svc.Progress(r.Context(), s.now())
		if err != nil {
			s.log.Error("failed to load progress", "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal", "failed to load progress")
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.syncer.Sources(r.Context())
		if err != nil {
			s.log.Error("failed to list sources", "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal", "failed to list sources")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"sources": nonNil(sources)})
	}
}

// handlePostSource registers a local path or git URL given as {"path": ...}.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
			s.writeError(w, http.StatusBadRequest, "invalid_body", "path cannot be empty")
			return
		}
		src, err := s.syncer.AddSource(r.Context(), strings.TrimSpace(req.Path))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_source", err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, src)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_id", "invalid source ID")
			return
		}
		if err := s.syncer.RemoveSource(r.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.writeError(w, http.StatusNotFound, "not_found", err.Error())
				return
			}
			s.log.Error("failed to remove source", "id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal", "failed to remove source")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync runs a sync in the foreground and returns the per-source
// reports.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.syncer.RunAll(r.Context())
		if err != nil {
			s.log.Error("sync failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "sync_failed", err.Error())
			return
		}
		out := make([]map[string]interface{}, 0, len(reports))
		for _, rep := range reports {
			entry := map[string]interface{}{
				"source_id": rep.Source.ID,
				"path":      rep.Source.Path,
				"files":     rep.Files,
				"added":     rep.Added,
				"skipped":   rep.Skipped,
			}
			if rep.Err != nil {
				entry["error"] = rep.Err.Error()
			}
			out = append(out, entry)
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"sources": out})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": msg, "code": code},
	})
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

