// Package catalog is a typed client for the TMDB movie metadata API plus
// the trailer and image URL helpers the site renders with.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/internal/metrics"
)

// DefaultBaseURL is the TMDB v3 API root
const DefaultBaseURL = "https://api.themoviedb.org/3"

const defaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response is decoded
const maxBodySize = 4 << 20

// Config holds Client configuration
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set
	HTTPClient *http.Client
}

// Client calls the movie metadata API. It keeps no state between calls.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new Client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiKey != "YOUR_API_KEY_HERE"
}

// List fetches one page of a category listing
func (c *Client) List(ctx context.Context, category Category, page int) (*MoviePage, error) {
	var out MoviePage
	if err := c.get(ctx, string(category), "/movie/"+string(category), pageQuery(page), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search finds movies by title. A blank query returns an empty page
// without calling the API.
func (c *Client) Search(ctx context.Context, query string, page int) (*MoviePage, error) {
	if !c.Configured() {
		return nil, &UpstreamError{Message: MsgAPIKeyMissing}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return &MoviePage{Results: []Movie{}}, nil
	}

	q := pageQuery(page)
	q.Set("query", query)

	var out MoviePage
	if err := c.get(ctx, "search", "/search/movie", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Details fetches the full record of one movie
func (c *Client) Details(ctx context.Context, id int64) (*MovieDetails, error) {
	var out MovieDetails
	if err := c.get(ctx, "details", "/movie/"+strconv.FormatInt(id, 10), url.Values{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Videos fetches the video list of one movie
func (c *Client) Videos(ctx context.Context, id int64) (*VideoList, error) {
	var out VideoList
	if err := c.get(ctx, "videos", "/movie/"+strconv.FormatInt(id, 10)+"/videos", url.Values{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetailsWithTrailer fetches details and videos concurrently and merges the
// preferred trailer and trailer list into the details. A videos failure
// leaves the trailer fields empty; a details failure fails the call.
func (c *Client) DetailsWithTrailer(ctx context.Context, id int64) (*MovieDetails, error) {
	var (
		details *MovieDetails
		videos  *VideoList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = c.Details(gctx, id)
		return err
	})
	g.Go(func() error {
		v, err := c.Videos(gctx, id)
		if err != nil {
			logger.WithCorrelationID(ctx, c.logger).Warn("Movie videos unavailable",
				"movie_id", id, "error", err)
			return nil
		}
		videos = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []Video
	if videos != nil {
		results = videos.Results
	}
	details.MainTrailer = TrailerEmbedURL(results)
	details.Trailers = AllTrailers(results)
	details.AllVideos = results
	if details.AllVideos == nil {
		details.AllVideos = []Video{}
	}
	return details, nil
}

// get performs one API call and decodes the JSON body into out
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) (err error) {
	if !c.Configured() {
		return &UpstreamError{Message: MsgAPIKeyMissing}
	}

	start := time.Now()
	defer func() { metrics.ObserveUpstream(endpoint, start, err) }()

	query.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The url.Error carries the API key in its URL
		return fmt.Errorf("%w: %s: %v", ErrConnectivity, endpoint, unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrConnectivity, endpoint, err)
	}

	var envelope struct {
		Errors        []string `json:"errors"`
		StatusMessage string   `json:"status_message"`
		Success       *bool    `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: "Malformed response from movie database."}
	}
	if len(envelope.Errors) > 0 {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: strings.Join(envelope.Errors, ", ")}
	}
	if envelope.Success != nil && !*envelope.Success && envelope.StatusMessage != "" {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: envelope.StatusMessage}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: "Malformed response from movie database."}
	}
	return nil
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	return q
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
