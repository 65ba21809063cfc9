package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Catalog errors
var (
	// ErrUpstream matches every *UpstreamError
	ErrUpstream = errors.New("movie metadata api error")
	// ErrConnectivity wraps transport failures reaching the API
	ErrConnectivity = errors.New("movie metadata api unreachable")
)

// User-facing messages
const (
	MsgAPIKeyMissing = "API key not configured. Please add your TMDB API key"
	MsgInvalidAPIKey = "Invalid API key. Please check your TMDB API key."
	MsgNotFound      = "Resource not found."
	MsgAPIKeyHint    = "Set TMDB_API_KEY in the server environment and restart."
)

// UpstreamError is a non-2xx answer or an error embedded in the payload.
// Message is shown to the user as is.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// statusError maps a non-2xx status to an UpstreamError
func statusError(code int) *UpstreamError {
	switch code {
	case http.StatusUnauthorized:
		return &UpstreamError{StatusCode: code, Message: MsgInvalidAPIKey}
	case http.StatusNotFound:
		return &UpstreamError{StatusCode: code, Message: MsgNotFound}
	default:
		return &UpstreamError{
			StatusCode: code,
			Message:    fmt.Sprintf("API Error: %d - %s", code, http.StatusText(code)),
		}
	}
}

// Payload is the error sentinel returned to JSON callers in place of a
// listing. Results is always empty so clients can render it directly.
type Payload struct {
	Error   string  `json:"error"`
	Results []Movie `json:"results"`
	Hint    string  `json:"hint,omitempty"`
}

// ErrorPayload renders err as the error sentinel. Upstream messages are
// kept verbatim; anything else becomes a generic message.
func ErrorPayload(err error) Payload {
	msg := "Unable to reach the movie database. Please try again later."
	var ue *UpstreamError
	if errors.As(err, &ue) {
		msg = ue.Message
	}

	p := Payload{Error: msg, Results: []Movie{}}
	if strings.Contains(msg, "API key") {
		p.Hint = MsgAPIKeyHint
	}
	return p
}
