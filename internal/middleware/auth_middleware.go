package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cineflix/cineflix/internal/auth"
	appctx "github.com/cineflix/cineflix/internal/context"
	"github.com/cineflix/cineflix/internal/session"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthChecker resolves the auth status of a request
type AuthChecker interface {
	CheckAuth(ctx context.Context, w http.ResponseWriter, r *http.Request) auth.AuthStatus
}

// SessionAuth injects the logged-in account into request contexts
type SessionAuth struct {
	checker AuthChecker
}

// NewSessionAuth creates a new SessionAuth instance
func NewSessionAuth(checker AuthChecker) *SessionAuth {
	return &SessionAuth{checker: checker}
}

// Optional resolves the session (and remember-me fallback) once per request
// and stores the account in the context when logged in. Handlers that check
// auth again with the request context get the already settled session.
func (m *SessionAuth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := appctx.ExtractAccountID(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		r = r.WithContext(session.WithRequestState(r.Context()))
		status := m.checker.CheckAuth(r.Context(), w, r)
		if status.LoggedIn && status.User != nil {
			ctx := appctx.WithAccount(r.Context(), status.User.ID, status.User.Name, status.User.Email)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin rejects requests without a live session with 401
func (m *SessionAuth) RequireLogin(next http.Handler) http.Handler {
	return m.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := appctx.ExtractAccountID(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "NOT_LOGGED_IN", "Please login to continue")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	})
}
