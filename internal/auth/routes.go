package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// RegisterRoutes registers the authentication routes with the Chi router.
// Form posts are rate limited; /api/me requires a live session.
func RegisterRoutes(r chi.Router, handler *AuthHandler, rateLimit, requireLogin Middleware) {
	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit).Post("/login", handler.Login)
		r.With(rateLimit).Post("/signup", handler.Signup)

		// Only POST is accepted; anything else goes back to the form page
		r.Get("/login", handler.Login)
		r.Get("/signup", handler.Signup)

		r.Get("/logout", handler.Logout)
		r.Get("/check", handler.CheckAuth)
	})

	r.Route("/api/me", func(r chi.Router) {
		r.Use(requireLogin)
		r.Get("/", handler.GetMe)
		r.Get("/logins", handler.GetLoginHistory)
	})
}
