package download

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cineflix/cineflix/internal/catalog"
	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/internal/ui"
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

// Handler serves download endpoints
type Handler struct {
	service *Service
	checker ui.StatusChecker
	logger  *slog.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(service *Service, checker ui.StatusChecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		checker: checker,
		logger:  logger,
	}
}

// DownloadMovie prepares a movie artwork download
// GET /api/download/movie/{id}
func (h *Handler) DownloadMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gate(w, r, ui.ActionDownloadMovie)
	if !ok {
		return
	}

	dl, err := h.service.PrepareMovie(r.Context(), id)
	if err != nil {
		h.handleError(w, r, id, err)
		return
	}
	logger.WithCorrelationID(r.Context(), h.logger).Info("Movie download prepared", "movie_id", id, "cached", dl.Cached)
	h.writeSuccess(w, http.StatusOK, dl)
}

// DownloadMetadata returns the movie metadata as a JSON attachment
// GET /api/download/movie/{id}/metadata
func (h *Handler) DownloadMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gate(w, r, ui.ActionDownloadMovie)
	if !ok {
		return
	}

	dl, err := h.service.PrepareMovie(r.Context(), id)
	if err != nil {
		h.handleError(w, r, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": MetadataFileName(dl.Title),
	}))
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(dl.Metadata)
}

// DownloadTrailer prepares a trailer download
// GET /api/download/trailer/{id}
func (h *Handler) DownloadTrailer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gate(w, r, ui.ActionDownloadTrailer)
	if !ok {
		return
	}

	dl, err := h.service.PrepareTrailer(r.Context(), id)
	if err != nil {
		h.handleError(w, r, id, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, dl)
}

// gate parses the movie id and requires a logged-in viewer
func (h *Handler) gate(w http.ResponseWriter, r *http.Request, action string) (int64, bool) {
	state := ui.NewRequestAuthState(h.checker, w, r)
	if !state.LoggedIn(r.Context()) {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", ui.LoginPrompt(action))
		return 0, false
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid movie id")
		return 0, false
	}
	return id, true
}

// handleError maps service errors to HTTP responses
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, id int64, err error) {
	var ue *catalog.UpstreamError
	switch {
	case errors.Is(err, ErrNoArtwork):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", MsgNoArtwork)
	case errors.Is(err, ErrNoTrailer):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", MsgNoTrailer)
	case errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound:
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", ue.Message)
	default:
		logger.WithCorrelationID(r.Context(), h.logger).Warn("Download failed", "movie_id", id, "error", err)
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", catalog.ErrorPayload(err).Error)
	}
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
