package catalog

import "fmt"

// Category selects one of the movie listing endpoints
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTopRated   Category = "top_rated"
	CategoryNowPlaying Category = "now_playing"
	CategoryUpcoming   Category = "upcoming"
)

// ParseCategory validates a category name taken from a request
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryPopular, CategoryTopRated, CategoryNowPlaying, CategoryUpcoming:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Movie is a listing entry; only the fields the site renders are decoded
type Movie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
}

// Year returns the release year, or "" when the date is missing
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// MoviePage is one page of a listing or search
type MoviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// Genre is a movie genre
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MovieDetails is the full record of one movie. The trailer fields are
// filled by DetailsWithTrailer.
type MovieDetails struct {
	Movie
	Runtime int     `json:"runtime"`
	Tagline string  `json:"tagline"`
	Status  string  `json:"status"`
	Genres  []Genre `json:"genres"`

	MainTrailer string    `json:"mainTrailer,omitempty"`
	Trailers    []Trailer `json:"trailers,omitempty"`
	AllVideos   []Video   `json:"allVideos,omitempty"`
}

// Video is one entry of a movie's video list
type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// VideoList is the response of the videos endpoint
type VideoList struct {
	ID      int64   `json:"id"`
	Results []Video `json:"results"`
}

// Trailer is a YouTube trailer with its embed and watch URLs
type Trailer struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	EmbedURL string `json:"embedUrl"`
	WatchURL string `json:"watchUrl"`
	Official bool   `json:"official"`
}
