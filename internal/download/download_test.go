package download

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cineflix/cineflix/internal/auth"
	"github.com/cineflix/cineflix/internal/catalog"
	appctx "github.com/cineflix/cineflix/internal/context"
)

type fakeCatalog struct {
	movies map[int64]catalog.MovieDetails
	videos map[int64][]catalog.Video
}

func (f *fakeCatalog) Details(ctx context.Context, id int64) (*catalog.MovieDetails, error) {
	d, ok := f.movies[id]
	if !ok {
		return nil, &catalog.UpstreamError{StatusCode: http.StatusNotFound, Message: catalog.MsgNotFound}
	}
	return &d, nil
}

func (f *fakeCatalog) Videos(ctx context.Context, id int64) (*catalog.VideoList, error) {
	return &catalog.VideoList{ID: id, Results: f.videos[id]}, nil
}

// fakeCache is an in-memory ArtworkCache
type fakeCache struct {
	objects map[string][]byte
	failPut bool
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{objects: make(map[string][]byte)}
}

func (c *fakeCache) Key(movieID int64, fileName string) string {
	return "artwork/" + strconv.FormatInt(movieID, 10) + "/" + fileName
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.objects[key]
	return ok, nil
}

func (c *fakeCache) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if c.failPut {
		return errors.New("bucket unavailable")
	}
	c.puts++
	c.objects[key] = data
	return nil
}

func (c *fakeCache) PresignGet(ctx context.Context, key, fileName string) (string, error) {
	return "https://minio.local/" + key + "?signed=1", nil
}

// imageTransport answers every artwork fetch with a fixed body
type imageTransport struct {
	requests []string
}

func (t *imageTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.requests = append(t.requests, req.URL.String())
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"image/jpeg"}},
		Body:       io.NopCloser(strings.NewReader("jpeg-bytes")),
		Request:    req,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		movies: map[int64]catalog.MovieDetails{
			550: {Movie: catalog.Movie{ID: 550, Title: "Fight Club", BackdropPath: "/back.jpg", PosterPath: "/poster.jpg",
				ReleaseDate: "1999-10-15", Overview: "Soap.", VoteAverage: 8.4}},
			27205: {Movie: catalog.Movie{ID: 27205, Title: "Inception", PosterPath: "/inception.jpg"}},
			1:     {Movie: catalog.Movie{ID: 1, Title: "No Art"}},
		},
		videos: map[int64][]catalog.Video{
			550: {
				{Key: "teaser", Name: "Teaser", Site: "YouTube", Type: "Teaser"},
				{Key: "trailer", Name: "Official Trailer", Site: "YouTube", Type: "Trailer", Official: true},
			},
			27205: {{Key: "clip", Name: "Clip", Site: "YouTube", Type: "Clip"}},
		},
	}
}

func TestPrepareMoviePrefersBackdrop(t *testing.T) {
	svc := NewService(testCatalog(), nil, nil, discardLogger())

	dl, err := svc.PrepareMovie(context.Background(), 550)
	require.NoError(t, err)
	assert.Equal(t, catalog.ImageBaseURL+"w1280/back.jpg", dl.URL)
	assert.Equal(t, "fight-club.jpg", dl.FileName)
	assert.False(t, dl.Cached)
	assert.Equal(t, Metadata{ID: 550, Title: "Fight Club", ReleaseDate: "1999-10-15", Overview: "Soap.", Rating: 8.4}, dl.Metadata)
}

func TestPrepareMovieFallsBackToPoster(t *testing.T) {
	svc := NewService(testCatalog(), nil, nil, discardLogger())

	dl, err := svc.PrepareMovie(context.Background(), 27205)
	require.NoError(t, err)
	assert.Equal(t, catalog.ImageBaseURL+"w780/inception.jpg", dl.URL)
}

func TestPrepareMovieWithoutArtwork(t *testing.T) {
	svc := NewService(testCatalog(), nil, nil, discardLogger())

	_, err := svc.PrepareMovie(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoArtwork)
}

func TestPrepareMovieCachesArtworkOnce(t *testing.T) {
	cache := newFakeCache()
	transport := &imageTransport{}
	svc := NewService(testCatalog(), cache, &http.Client{Transport: transport}, discardLogger())

	for range 2 {
		dl, err := svc.PrepareMovie(context.Background(), 550)
		require.NoError(t, err)
		assert.True(t, dl.Cached)
		assert.Equal(t, "https://minio.local/artwork/550/fight-club.jpg?signed=1", dl.URL)
	}

	assert.Equal(t, 1, cache.puts)
	assert.Len(t, transport.requests, 1)
	assert.Equal(t, []byte("jpeg-bytes"), cache.objects["artwork/550/fight-club.jpg"])
}

func TestPrepareMovieCacheFailureServesSource(t *testing.T) {
	cache := newFakeCache()
	cache.failPut = true
	svc := NewService(testCatalog(), cache, &http.Client{Transport: &imageTransport{}}, discardLogger())

	dl, err := svc.PrepareMovie(context.Background(), 550)
	require.NoError(t, err)
	assert.False(t, dl.Cached)
	assert.Equal(t, catalog.ImageBaseURL+"w1280/back.jpg", dl.URL)
}

func TestPrepareMovieOversizeArtworkIsNotCached(t *testing.T) {
	cache := newFakeCache()
	svc := NewService(testCatalog(), cache, &http.Client{Transport: &imageTransport{}}, discardLogger())
	svc.maxBytes = int64(len("jpeg-bytes")) - 1

	dl, err := svc.PrepareMovie(context.Background(), 550)
	require.NoError(t, err)
	assert.False(t, dl.Cached)
	assert.Equal(t, catalog.ImageBaseURL+"w1280/back.jpg", dl.URL)
	assert.Empty(t, cache.objects)

	_, _, err = svc.fetch(context.Background(), catalog.ImageBaseURL+"w1280/back.jpg")
	assert.ErrorIs(t, err, errArtworkTooLarge)

	// exactly at the limit is accepted
	svc.maxBytes = int64(len("jpeg-bytes"))
	data, _, err := svc.fetch(context.Background(), catalog.ImageBaseURL+"w1280/back.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestPrepareTrailer(t *testing.T) {
	svc := NewService(testCatalog(), nil, nil, discardLogger())

	dl, err := svc.PrepareTrailer(context.Background(), 550)
	require.NoError(t, err)
	assert.Equal(t, catalog.WatchURL("trailer"), dl.URL)
	assert.Equal(t, "fight-club-trailer.mp4", dl.FileName)

	// any YouTube video is downloadable when there is no trailer
	dl, err = svc.PrepareTrailer(context.Background(), 27205)
	require.NoError(t, err)
	assert.Equal(t, catalog.WatchURL("clip"), dl.URL)

	_, err = svc.PrepareTrailer(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoTrailer)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Fight Club", "fight-club"},
		{"  Spider-Man: No Way Home!  ", "spider-man-no-way-home"},
		{"WALL·E", "wall-e"},
		{"!!!", "movie"},
		{"", "movie"},
		{strings.Repeat("ab ", 40), strings.TrimSuffix(strings.Repeat("ab-", 20), "-")},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

// Property: slugs are short, lowercase alphanumeric runs joined by single dashes
func TestPropertySlugShape(t *testing.T) {
	shape := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	rapid.Check(t, func(t *rapid.T) {
		slug := Slugify(rapid.String().Draw(t, "title"))
		if len(slug) > maxSlugLength {
			t.Fatalf("slug %q longer than %d", slug, maxSlugLength)
		}
		if !shape.MatchString(slug) {
			t.Fatalf("slug %q has unexpected shape", slug)
		}
	})
}

type stubChecker struct {
	loggedIn bool
}

func (s stubChecker) CheckAuth(ctx context.Context, w http.ResponseWriter, r *http.Request) auth.AuthStatus {
	return auth.AuthStatus{LoggedIn: s.loggedIn}
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestHandlerRequiresLogin(t *testing.T) {
	h := NewHandler(NewService(testCatalog(), nil, nil, discardLogger()), stubChecker{}, discardLogger())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/download/movie/550", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Please login to download movies", decodeError(t, rec).Message)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/download/trailer/550", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Please login to download trailers", decodeError(t, rec).Message)
}

func TestHandlerDownloadMovie(t *testing.T) {
	h := NewHandler(NewService(testCatalog(), nil, nil, discardLogger()), stubChecker{loggedIn: true}, discardLogger())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/download/movie/550", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    MovieDownload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "fight-club.jpg", resp.Data.FileName)
}

func TestHandlerSessionAccountSkipsChecker(t *testing.T) {
	h := NewHandler(NewService(testCatalog(), nil, nil, discardLogger()), nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/download/trailer/550", nil)
	req = req.WithContext(appctx.WithAccount(req.Context(), 3, "Alice", "alice@example.com"))
	rec := serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerDownloadErrors(t *testing.T) {
	h := NewHandler(NewService(testCatalog(), nil, nil, discardLogger()), stubChecker{loggedIn: true}, discardLogger())

	tests := []struct {
		name    string
		path    string
		status  int
		message string
	}{
		{"invalid id", "/api/download/movie/abc", http.StatusBadRequest, "Invalid movie id"},
		{"no artwork", "/api/download/movie/1", http.StatusNotFound, MsgNoArtwork},
		{"no trailer", "/api/download/trailer/1", http.StatusNotFound, MsgNoTrailer},
		{"unknown movie", "/api/download/movie/404", http.StatusNotFound, catalog.MsgNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec).Message)
		})
	}
}

func TestHandlerDownloadMetadata(t *testing.T) {
	h := NewHandler(NewService(testCatalog(), nil, nil, discardLogger()), stubChecker{loggedIn: true}, discardLogger())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/download/movie/550/metadata", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=fight-club-metadata.json", rec.Header().Get("Content-Disposition"))

	var meta Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, int64(550), meta.ID)
	assert.Equal(t, 8.4, meta.Rating)
}
