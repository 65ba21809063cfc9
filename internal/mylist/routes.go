package mylist

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the my list routes with the Chi router
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/api/my-list", func(r chi.Router) {
		r.Get("/", handler.GetList)
		r.Post("/{id}", handler.AddMovie)
		r.Delete("/{id}", handler.RemoveMovie)
	})
}
