package download

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the download routes with the Chi router
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/api/download", func(r chi.Router) {
		r.Get("/movie/{id}", handler.DownloadMovie)
		r.Get("/movie/{id}/metadata", handler.DownloadMetadata)
		r.Get("/trailer/{id}", handler.DownloadTrailer)
	})
}
