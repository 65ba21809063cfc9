package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	appctx "github.com/cineflix/cineflix/internal/context"
	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/internal/sanitizer"
)

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

// Pages are the browser locations the form handlers redirect to
type Pages struct {
	Home   string
	Login  string
	Signup string
}

// DefaultPages returns the site's standard page locations
func DefaultPages() Pages {
	return Pages{Home: "/", Login: "/login", Signup: "/signup"}
}

// AuthHandler handles HTTP requests for authentication endpoints
type AuthHandler struct {
	gateway   *Gateway
	pages     Pages
	sanitizer *sanitizer.TextSanitizer
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(gateway *Gateway, pages Pages, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		gateway:   gateway,
		pages:     pages,
		sanitizer: sanitizer.NewTextSanitizer(),
		logger:    logger,
	}
}

// Signup handles the signup form
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, h.pages.Signup, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectError(w, r, h.pages.Signup, MsgGenericError)
		return
	}

	req := SignupRequest{
		Name:            r.PostForm.Get("name"),
		Email:           r.PostForm.Get("email"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirm_password"),
		Terms:           r.PostForm.Has("terms"),
	}

	if _, err := h.gateway.Signup(r.Context(), w, r, req); err != nil {
		h.logFailure(r, "Signup failed", err)
		h.redirectError(w, r, h.pages.Signup, UserMessage(err))
		return
	}

	h.redirectSuccess(w, r, MsgSignupSuccess)
}

// Login handles the login form
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, h.pages.Login, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectError(w, r, h.pages.Login, MsgGenericError)
		return
	}

	req := LoginRequest{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
		Remember: r.PostForm.Has("remember"),
	}

	user, err := h.gateway.Login(r.Context(), w, r, req)
	if err != nil {
		h.logFailure(r, "Login failed", err)
		h.redirectError(w, r, h.pages.Login, UserMessage(err))
		return
	}

	h.redirectSuccess(w, r, "Welcome back, "+h.sanitizer.Escaped(user.Name)+"!")
}

// Logout ends the session
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	name := h.gateway.Logout(r.Context(), w, r)
	h.redirectSuccess(w, r, "You have been logged out successfully. Goodbye, "+h.sanitizer.Escaped(name)+"!")
}

// CheckAuth reports whether the browser is logged in
// GET /auth/check
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	status := h.gateway.CheckAuth(r.Context(), w, r)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// GetMe returns the session snapshot of the logged-in user
// GET /api/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := appctx.ExtractAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "NOT_LOGGED_IN", "Please login to continue")
		return
	}
	name, _ := appctx.ExtractName(r.Context())
	email, _ := appctx.ExtractEmail(r.Context())

	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"user": UserSnapshot{ID: accountID, Name: name, Email: email},
	})
}

// GetLoginHistory lists the logged-in user's recent login attempts
// GET /api/me/logins?limit=
func (h *AuthHandler) GetLoginHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := appctx.ExtractAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "NOT_LOGGED_IN", "Please login to continue")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.gateway.LoginHistory(r.Context(), accountID, limit)
	if err != nil {
		h.logFailure(r, "Login history failed", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", MsgGenericError)
		return
	}

	type loginEntry struct {
		Time      time.Time `json:"login_time"`
		IPAddress string    `json:"ip_address"`
		UserAgent string    `json:"user_agent"`
		Status    string    `json:"status"`
	}
	entries := make([]loginEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, loginEntry{
			Time:      e.LoginTime,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			Status:    string(e.Status),
		})
	}

	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"logins": entries,
	})
}

func (h *AuthHandler) redirectSuccess(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.pages.Home+"?success="+url.QueryEscape(message), http.StatusSeeOther)
}

func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, page, message string) {
	http.Redirect(w, r, page+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

// logFailure logs unexpected errors; expected user errors are not logged
func (h *AuthHandler) logFailure(r *http.Request, msg string, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) || errors.Is(err, ErrEmailExists) || errors.Is(err, ErrInvalidCredentials) {
		return
	}
	logger.WithCorrelationID(r.Context(), h.logger).Error(msg, "error", err)
}

// writeSuccess writes a successful JSON response
func (h *AuthHandler) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// writeError writes an error JSON response
func (h *AuthHandler) writeError(w http.ResponseWriter, statusCode int, code, message string) {
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

// maxIPLength is the width of the ip columns in users and login_history
const maxIPLength = 45

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				return normalizeIP(ip)
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return normalizeIP(xri)
	}

	if r.RemoteAddr == "" {
		return "Unknown"
	}
	return normalizeIP(r.RemoteAddr)
}

// normalizeIP drops any port and returns the canonical address. Values that
// are not addresses are kept but cut to fit the column.
func normalizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if ip := net.ParseIP(strings.Trim(addr, "[]")); ip != nil {
		return ip.String()
	}
	if len(addr) > maxIPLength {
		addr = strings.ToValidUTF8(addr[:maxIPLength], "")
	}
	return addr
}

func getUserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return "Unknown"
}
