package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the movie card routes with the Chi router
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Get("/api/sections/{name}", handler.GetSection)
	r.Get("/api/movies", handler.ListMovies)
	r.Get("/api/movies/{id}", handler.GetMovie)
	r.Get("/api/search", handler.Search)
}
