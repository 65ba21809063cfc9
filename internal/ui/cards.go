package ui

import (
	"strconv"
	"strings"

	"github.com/cineflix/cineflix/internal/catalog"
	"github.com/cineflix/cineflix/internal/sanitizer"
)

// Action kinds
const (
	ActionWatchTrailer    = "watch_trailer"
	ActionWatchMovie      = "watch_movie"
	ActionDownloadMovie   = "download_movie"
	ActionDownloadTrailer = "download_trailer"
	ActionLoginPrompt     = "login_prompt"
)

// loginPrompts is the message shown in place of each gated action
var loginPrompts = map[string]string{
	ActionWatchTrailer:    "Please login to watch trailers",
	ActionWatchMovie:      "Please login to watch full movies",
	ActionDownloadMovie:   "Please login to download movies",
	ActionDownloadTrailer: "Please login to download trailers",
}

// LoginPrompt returns the message shown in place of a gated action
func LoginPrompt(kind string) string {
	return loginPrompts[kind]
}

// excludedTitles are dropped from every listing
var excludedTitles = []string{"bureau 749", "bureau749"}

var plain = sanitizer.NewTextSanitizer()

// Action is one button on a card. Logged-out viewers get a login_prompt
// whose Target names the action it replaces.
type Action struct {
	Kind    string `json:"kind"`
	Target  string `json:"target,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Card is a movie ready to render
type Card struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	PosterURL   string   `json:"poster_url"`
	BackdropURL string   `json:"backdrop_url,omitempty"`
	Rating      float64  `json:"rating"`
	Year        string   `json:"year"`
	Overview    string   `json:"overview"`
	InMyList    bool     `json:"in_my_list"`
	TrailerURL  string   `json:"trailer_url,omitempty"`
	Actions     []Action `json:"actions"`
}

// Detail is a movie detail view with gated actions
type Detail struct {
	*catalog.MovieDetails
	Year     string   `json:"year"`
	InMyList bool     `json:"in_my_list"`
	Actions  []Action `json:"actions"`
}

// FilterMovies removes excluded titles, keeping order. It must run before
// any truncation so sections are not left short.
func FilterMovies(movies []catalog.Movie) []catalog.Movie {
	out := make([]catalog.Movie, 0, len(movies))
	for _, m := range movies {
		if !isExcluded(m.Title) {
			out = append(out, m)
		}
	}
	return out
}

func isExcluded(title string) bool {
	lower := strings.ToLower(title)
	for _, ex := range excludedTitles {
		if strings.Contains(lower, ex) {
			return true
		}
	}
	return false
}

// gate returns the action itself when logged in, else its login prompt
func gate(loggedIn bool, kind, url string) Action {
	if loggedIn {
		return Action{Kind: kind, URL: url}
	}
	return Action{Kind: ActionLoginPrompt, Target: kind, Message: loginPrompts[kind]}
}

func movieActions(id int64, loggedIn bool, trailerURL string) []Action {
	idStr := strconv.FormatInt(id, 10)
	return []Action{
		gate(loggedIn, ActionWatchTrailer, trailerURL),
		gate(loggedIn, ActionWatchMovie, catalog.MovieEmbedURL(id)),
		gate(loggedIn, ActionDownloadMovie, "/api/download/movie/"+idStr),
		gate(loggedIn, ActionDownloadTrailer, "/api/download/trailer/"+idStr),
	}
}

// BuildCards renders movies as cards. saved marks ids in the viewer's list
// and may be nil.
func BuildCards(movies []catalog.Movie, loggedIn bool, saved map[int64]bool) []Card {
	cards := make([]Card, 0, len(movies))
	for _, m := range movies {
		cards = append(cards, Card{
			ID:          m.ID,
			Title:       plain.PlainText(m.Title),
			PosterURL:   catalog.ImageURL(m.PosterPath, "w500"),
			BackdropURL: catalog.BackdropURL(m.BackdropPath),
			Rating:      m.VoteAverage,
			Year:        m.Year(),
			Overview:    plain.PlainText(m.Overview),
			InMyList:    saved[m.ID],
			// Cards carry no video list; the client resolves the trailer
			// through the detail endpoint
			Actions: movieActions(m.ID, loggedIn, "/api/movies/"+strconv.FormatInt(m.ID, 10)),
		})
	}
	return cards
}

// BuildDetail renders one movie's detail view
func BuildDetail(d *catalog.MovieDetails, loggedIn, inList bool) Detail {
	d.Overview = plain.PlainText(d.Overview)
	return Detail{
		MovieDetails: d,
		Year:         d.Year(),
		InMyList:     inList,
		Actions:      movieActions(d.ID, loggedIn, d.MainTrailer),
	}
}
