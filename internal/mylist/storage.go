package mylist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/cineflix/cineflix/internal/repository"
)

// CookieName holds the JSON array of saved ids
const CookieName = "myMovieList"

const cookieMaxAge = 365 * 24 * time.Hour

// maxCookieValueBytes keeps the cookie under the 4 KB browsers accept,
// leaving room for its name and attributes
const maxCookieValueBytes = 3800

// ErrListFull is returned when the list no longer fits in its cookie
var ErrListFull = errors.New("my list cookie is full")

// CookieStorage keeps the list in the myMovieList cookie. The cookie is
// readable by page script so the client can render without a round trip.
type CookieStorage struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool

	// saved shadows the request cookie after a Save in the same request
	saved []int64
}

// NewCookieStorage creates a CookieStorage for one request
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{w: w, r: r, secure: secure}
}

// Load decodes the cookie; a missing or unreadable cookie is an empty list
func (s *CookieStorage) Load(ctx context.Context) ([]int64, error) {
	if s.saved != nil {
		return slices.Clone(s.saved), nil
	}
	cookie, err := s.r.Cookie(CookieName)
	if err != nil {
		return []int64{}, nil
	}
	return DecodeCookie(cookie.Value), nil
}

// Save writes the list back to the cookie. A list too long for the cookie
// is rejected with ErrListFull and the stored list is left unchanged.
func (s *CookieStorage) Save(ctx context.Context, ids []int64) error {
	value, err := EncodeCookie(ids)
	if err != nil {
		return err
	}
	if len(value) > maxCookieValueBytes {
		return ErrListFull
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.saved = slices.Clone(ids)
	if s.saved == nil {
		s.saved = []int64{}
	}
	return nil
}

// EncodeCookie renders ids as a URL-escaped JSON array
func EncodeCookie(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(raw)), nil
}

// DecodeCookie parses a cookie value written by EncodeCookie or by page
// script; anything unreadable is an empty list
func DecodeCookie(value string) []int64 {
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	var ids []int64
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return []int64{}
	}
	return dedupe(ids)
}

// RepositoryStorage keeps one account's list in the user_movies table
type RepositoryStorage struct {
	repo      repository.SavedMovieRepository
	accountID int64
}

// NewRepositoryStorage creates a RepositoryStorage for accountID
func NewRepositoryStorage(repo repository.SavedMovieRepository, accountID int64) *RepositoryStorage {
	return &RepositoryStorage{repo: repo, accountID: accountID}
}

// Load returns the account's ids ordered by when they were added
func (s *RepositoryStorage) Load(ctx context.Context) ([]int64, error) {
	return s.repo.ListMovieIDs(ctx, s.accountID)
}

// Save applies the difference between the stored list and ids. New ids
// are inserted in list order so the added_at order matches.
func (s *RepositoryStorage) Save(ctx context.Context, ids []int64) error {
	current, err := s.repo.ListMovieIDs(ctx, s.accountID)
	if err != nil {
		return err
	}

	for _, id := range current {
		if !slices.Contains(ids, id) {
			if err := s.repo.Remove(ctx, s.accountID, id); err != nil {
				return err
			}
		}
	}
	for _, id := range ids {
		if !slices.Contains(current, id) {
			if _, err := s.repo.Add(ctx, s.accountID, id); err != nil {
				return err
			}
		}
	}
	return nil
}
