// Package download prepares movie artwork and trailer downloads for
// logged-in viewers.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cineflix/cineflix/internal/catalog"
	"github.com/cineflix/cineflix/internal/metrics"
)

// User-facing messages
const (
	MsgNoArtwork = "No downloadable artwork found for this movie."
	MsgNoTrailer = "No trailer available to download for this movie."
)

// Download errors
var (
	ErrNoArtwork = errors.New("no downloadable artwork")
	ErrNoTrailer = errors.New("no downloadable trailer")

	errArtworkTooLarge = errors.New("artwork too large")
)

// maxArtworkBytes bounds an artwork fetch
const maxArtworkBytes = 20 << 20

// maxSlugLength bounds the file name stem
const maxSlugLength = 60

// Catalog is the part of the movie catalog client downloads read
type Catalog interface {
	Details(ctx context.Context, id int64) (*catalog.MovieDetails, error)
	Videos(ctx context.Context, id int64) (*catalog.VideoList, error)
}

// ArtworkCache stores artwork copies in object storage
type ArtworkCache interface {
	Key(movieID int64, fileName string) string
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key, fileName string) (string, error)
}

// Metadata is the movie summary saved next to the artwork
type Metadata struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	Rating      float64 `json:"rating"`
}

// MovieDownload describes a prepared artwork download
type MovieDownload struct {
	MovieID  int64    `json:"movie_id"`
	Title    string   `json:"title"`
	FileName string   `json:"file_name"`
	URL      string   `json:"url"`
	Cached   bool     `json:"cached"`
	Metadata Metadata `json:"metadata"`
}

// TrailerDownload describes a prepared trailer download
type TrailerDownload struct {
	MovieID  int64  `json:"movie_id"`
	Title    string `json:"title"`
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// Service prepares downloads. The artwork cache is optional.
type Service struct {
	catalog    Catalog
	cache      ArtworkCache
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
}

// NewService creates a new download service. cache may be nil.
func NewService(c Catalog, cache ArtworkCache, httpClient *http.Client, logger *slog.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:    c,
		cache:      cache,
		httpClient: httpClient,
		maxBytes:   maxArtworkBytes,
		logger:     logger,
	}
}

// PrepareMovie resolves the best artwork of a movie. With a cache the image
// is copied into the bucket on first use and a presigned URL is returned;
// any cache failure falls back to the metadata API image URL.
func (s *Service) PrepareMovie(ctx context.Context, id int64) (*MovieDownload, error) {
	details, err := s.catalog.Details(ctx, id)
	if err != nil {
		return nil, err
	}

	source := catalog.BackdropURL(details.BackdropPath)
	if source == "" && details.PosterPath != "" {
		source = catalog.PosterURL(details.PosterPath)
	}
	if source == "" {
		return nil, ErrNoArtwork
	}

	slug := Slugify(details.Title)
	ext := path.Ext(source)
	if ext == "" {
		ext = ".jpg"
	}

	dl := &MovieDownload{
		MovieID:  details.ID,
		Title:    details.Title,
		FileName: slug + ext,
		URL:      source,
		Metadata: Metadata{
			ID:          details.ID,
			Title:       details.Title,
			ReleaseDate: details.ReleaseDate,
			Overview:    details.Overview,
			Rating:      details.VoteAverage,
		},
	}

	if s.cache != nil {
		if url, err := s.cachedURL(ctx, details.ID, source, dl.FileName); err != nil {
			metrics.ArtworkCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Artwork cache unavailable, serving source URL", "movie_id", id, "error", err)
		} else {
			dl.URL = url
			dl.Cached = true
		}
	}
	return dl, nil
}

// PrepareTrailer resolves the trailer a viewer can download
func (s *Service) PrepareTrailer(ctx context.Context, id int64) (*TrailerDownload, error) {
	details, err := s.catalog.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	videos, err := s.catalog.Videos(ctx, id)
	if err != nil {
		return nil, err
	}

	video, ok := catalog.DownloadableVideo(videos.Results)
	if !ok {
		return nil, ErrNoTrailer
	}
	return &TrailerDownload{
		MovieID:  details.ID,
		Title:    details.Title,
		Name:     video.Name,
		FileName: Slugify(details.Title) + "-trailer.mp4",
		URL:      catalog.WatchURL(video.Key),
	}, nil
}

// MetadataFileName is the attachment name of a movie's metadata file
func MetadataFileName(title string) string {
	return Slugify(title) + "-metadata.json"
}

func (s *Service) cachedURL(ctx context.Context, movieID int64, source, fileName string) (string, error) {
	key := s.cache.Key(movieID, fileName)

	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		metrics.ArtworkCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.ArtworkCacheTotal.WithLabelValues("miss").Inc()
		data, contentType, err := s.fetch(ctx, source)
		if err != nil {
			return "", err
		}
		if err := s.cache.Put(ctx, key, data, contentType); err != nil {
			return "", err
		}
	}
	return s.cache.PresignGet(ctx, key, fileName)
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch artwork: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read artwork: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", fmt.Errorf("%w: over %d bytes", errArtworkTooLarge, s.maxBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Slugify turns a title into a file name stem: lowercase, every run of
// characters outside [a-z0-9] replaced by one dash, at most 60 characters
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "movie"
	}
	return slug
}
