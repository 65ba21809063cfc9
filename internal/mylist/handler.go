package mylist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/cineflix/cineflix/internal/catalog"
	appctx "github.com/cineflix/cineflix/internal/context"
	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/internal/repository"
	"github.com/cineflix/cineflix/internal/ui"
)

// User-facing messages
const (
	MsgAdded          = "Movie added to your list!"
	MsgAlreadyInList  = "Movie is already in your list!"
	MsgRemoved        = "Movie removed from your list!"
	MsgNotInList      = "Movie is not in your list."
	MsgInvalidMovieID = "Invalid movie id"
	MsgListFailed     = "Unable to update your list. Please try again later."
	MsgListFull       = "Your list is full. Remove a movie before adding another."
)

// detailsConcurrency bounds parallel detail lookups for the list page
const detailsConcurrency = 6

// DetailsFetcher loads one movie's details
type DetailsFetcher interface {
	Details(ctx context.Context, id int64) (*catalog.MovieDetails, error)
}

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents the error detail in API response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandlerConfig holds Handler collaborators
type HandlerConfig struct {
	// Repo is used when ServerSync is on and the viewer is logged in
	Repo          repository.SavedMovieRepository
	ServerSync    bool
	Catalog       DetailsFetcher
	Checker       ui.StatusChecker
	SecureCookies bool
	Logger        *slog.Logger
}

// Handler serves the my list endpoints
type Handler struct {
	repo       repository.SavedMovieRepository
	serverSync bool
	catalog    DetailsFetcher
	checker    ui.StatusChecker
	secure     bool
	logger     *slog.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(cfg HandlerConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		repo:       cfg.Repo,
		serverSync: cfg.ServerSync && cfg.Repo != nil,
		catalog:    cfg.Catalog,
		checker:    cfg.Checker,
		secure:     cfg.SecureCookies,
		logger:     log,
	}
}

// ListFor returns the list backing this request
func (h *Handler) ListFor(w http.ResponseWriter, r *http.Request) *List {
	if h.serverSync {
		if accountID, ok := appctx.ExtractAccountID(r.Context()); ok {
			return NewList(NewRepositoryStorage(h.repo, accountID))
		}
	}
	return NewList(NewCookieStorage(w, r, h.secure))
}

// SavedIDs returns the viewer's saved ids; failures yield an empty list
func (h *Handler) SavedIDs(w http.ResponseWriter, r *http.Request) []int64 {
	ids, err := h.ListFor(w, r).IDs(r.Context())
	if err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Warn("Failed to load my list", "error", err)
		return nil
	}
	return ids
}

// GetList returns the saved ids and a card for every movie whose details
// could be loaded
// GET /api/my-list
func (h *Handler) GetList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ListFor(w, r).IDs(r.Context())
	if err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Error("Failed to load my list", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", MsgListFailed)
		return
	}

	movies := h.loadMovies(r.Context(), ids)

	saved := make(map[int64]bool, len(ids))
	for _, id := range ids {
		saved[id] = true
	}
	state := ui.NewRequestAuthState(h.checker, w, r)

	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"ids":   ids,
		"cards": ui.BuildCards(movies, state.LoggedIn(r.Context()), saved),
	})
}

// AddMovie saves a movie
// POST /api/my-list/{id}
func (h *Handler) AddMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := h.movieID(w, r)
	if !ok {
		return
	}

	added, err := h.ListFor(w, r).Add(r.Context(), id)
	if errors.Is(err, ErrListFull) {
		h.writeError(w, http.StatusConflict, "LIST_FULL", MsgListFull)
		return
	}
	if err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Error("Failed to add to my list", "movie_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", MsgListFailed)
		return
	}

	msg := MsgAdded
	if !added {
		msg = MsgAlreadyInList
	}
	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"added":   added,
		"message": msg,
	})
}

// RemoveMovie drops a movie
// DELETE /api/my-list/{id}
func (h *Handler) RemoveMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := h.movieID(w, r)
	if !ok {
		return
	}

	removed, err := h.ListFor(w, r).Remove(r.Context(), id)
	if err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Error("Failed to remove from my list", "movie_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", MsgListFailed)
		return
	}

	msg := MsgRemoved
	if !removed {
		msg = MsgNotInList
	}
	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"message": msg,
	})
}

// loadMovies fetches details concurrently keeping list order; ids whose
// details fail are left out
func (h *Handler) loadMovies(ctx context.Context, ids []int64) []catalog.Movie {
	if h.catalog == nil || len(ids) == 0 {
		return []catalog.Movie{}
	}

	found := make([]*catalog.Movie, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailsConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := h.catalog.Details(gctx, id)
			if err != nil {
				logger.WithCorrelationID(ctx, h.logger).Warn("Skipping my list movie", "movie_id", id, "error", err)
				return nil
			}
			found[i] = &d.Movie
			return nil
		})
	}
	g.Wait()

	movies := make([]catalog.Movie, 0, len(ids))
	for _, m := range found {
		if m != nil {
			movies = append(movies, *m)
		}
	}
	return movies
}

func (h *Handler) movieID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", MsgInvalidMovieID)
		return 0, false
	}
	return id, true
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	})
}
