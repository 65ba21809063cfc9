package ui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/cineflix/cineflix/internal/auth"
	"github.com/cineflix/cineflix/internal/catalog"
	appctx "github.com/cineflix/cineflix/internal/context"
	"github.com/cineflix/cineflix/internal/logger"
)

// Catalog is the part of the movie catalog client the UI reads
type Catalog interface {
	List(ctx context.Context, category catalog.Category, page int) (*catalog.MoviePage, error)
	Search(ctx context.Context, query string, page int) (*catalog.MoviePage, error)
	Videos(ctx context.Context, id int64) (*catalog.VideoList, error)
	DetailsWithTrailer(ctx context.Context, id int64) (*catalog.MovieDetails, error)
}

// StatusChecker resolves a request's auth status
type StatusChecker interface {
	CheckAuth(ctx context.Context, w http.ResponseWriter, r *http.Request) auth.AuthStatus
}

// SavedLister returns the movie ids in the viewer's list
type SavedLister interface {
	SavedIDs(w http.ResponseWriter, r *http.Request) []int64
}

// NewRequestAuthState returns an AuthState for one request. An account
// already placed in the context by the session middleware answers without
// asking checker.
func NewRequestAuthState(checker StatusChecker, w http.ResponseWriter, r *http.Request) *AuthState {
	return NewAuthState(CheckerFunc(func(ctx context.Context) (bool, error) {
		if _, ok := appctx.ExtractAccountID(ctx); ok {
			return true, nil
		}
		if checker == nil {
			return false, nil
		}
		return checker.CheckAuth(ctx, w, r).LoggedIn, nil
	}))
}

// Handler serves movie cards as JSON
type Handler struct {
	catalog Catalog
	checker StatusChecker
	saved   SavedLister
	logger  *slog.Logger
}

// NewHandler creates a new Handler. saved may be nil.
func NewHandler(c Catalog, checker StatusChecker, saved SavedLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		catalog: c,
		checker: checker,
		saved:   saved,
		logger:  logger,
	}
}

// GetSection returns one home page section
// GET /api/sections/{name}
func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	spec, ok := Sections[name]
	if !ok {
		writePayload(w, http.StatusNotFound, "Unknown section: "+name)
		return
	}

	movies, err := catalog.Collect(r.Context(), catalog.ListFetcher(h.catalog, spec.Category), spec, FilterMovies)
	if err != nil {
		h.upstreamFailure(w, r, "section "+name, err)
		return
	}

	state := NewRequestAuthState(h.checker, w, r)
	cards := BuildCards(movies, state.LoggedIn(r.Context()), h.savedSet(w, r))
	if name == "hero" && state.LoggedIn(r.Context()) {
		h.attachHeroTrailers(r.Context(), cards)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"section": name,
		"results": cards,
	})
}

// ListMovies returns one filtered page of a category
// GET /api/movies?category=&page=
func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	category := catalog.CategoryPopular
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, err := catalog.ParseCategory(raw)
		if err != nil {
			writePayload(w, http.StatusBadRequest, "Unknown category: "+raw)
			return
		}
		category = c
	}

	page, err := h.catalog.List(r.Context(), category, pageParam(r))
	if err != nil {
		h.upstreamFailure(w, r, "list "+string(category), err)
		return
	}
	h.writePage(w, r, page)
}

// Search returns one filtered page of search results
// GET /api/search?q=&page=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"), pageParam(r))
	if err != nil {
		h.upstreamFailure(w, r, "search", err)
		return
	}
	h.writePage(w, r, page)
}

// GetMovie returns a movie's detail view with trailer data
// GET /api/movies/{id}
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writePayload(w, http.StatusBadRequest, "Invalid movie id")
		return
	}

	details, err := h.catalog.DetailsWithTrailer(r.Context(), id)
	if err != nil {
		h.upstreamFailure(w, r, "movie details", err)
		return
	}

	state := NewRequestAuthState(h.checker, w, r)
	writeJSON(w, http.StatusOK, BuildDetail(details, state.LoggedIn(r.Context()), h.savedSet(w, r)[id]))
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, page *catalog.MoviePage) {
	state := NewRequestAuthState(h.checker, w, r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"page":          page.Page,
		"total_pages":   page.TotalPages,
		"total_results": page.TotalResults,
		"results":       BuildCards(FilterMovies(page.Results), state.LoggedIn(r.Context()), h.savedSet(w, r)),
	})
}

// attachHeroTrailers looks up the muted banner trailer of each hero card.
// Cards whose videos cannot be loaded keep no trailer.
func (h *Handler) attachHeroTrailers(ctx context.Context, cards []Card) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range cards {
		g.Go(func() error {
			videos, err := h.catalog.Videos(gctx, cards[i].ID)
			if err != nil {
				return nil
			}
			cards[i].TrailerURL = catalog.HeroEmbedURL(videos.Results)
			return nil
		})
	}
	g.Wait()
}

func (h *Handler) savedSet(w http.ResponseWriter, r *http.Request) map[int64]bool {
	if h.saved == nil {
		return nil
	}
	ids := h.saved.SavedIDs(w, r)
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// upstreamFailure answers with the catalog error sentinel
func (h *Handler) upstreamFailure(w http.ResponseWriter, r *http.Request, what string, err error) {
	status := http.StatusBadGateway
	var ue *catalog.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound {
		status = http.StatusNotFound
	}
	logger.WithCorrelationID(r.Context(), h.logger).Warn("Catalog request failed", "request", what, "error", err)
	writeJSON(w, status, catalog.ErrorPayload(err))
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writePayload(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, catalog.Payload{Error: message, Results: []catalog.Movie{}})
}

// writeJSON writes v as the JSON response body
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
