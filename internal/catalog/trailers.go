package catalog

import (
	"strconv"
	"strings"
)

// URL roots
const (
	ImageBaseURL      = "https://image.tmdb.org/t/p/"
	YouTubeEmbedURL   = "https://www.youtube.com/embed/"
	YouTubeWatchURL   = "https://www.youtube.com/watch?v="
	MovieEmbedBaseURL = "https://vidsrc.to/embed/movie/"
	PlaceholderImage  = "https://via.placeholder.com/500x750?text=No+Image"
)

func isYouTube(v Video) bool { return v.Site == "YouTube" }

func isYouTubeTrailer(v Video) bool { return isYouTube(v) && v.Type == "Trailer" }

func isOfficial(v Video) bool {
	return v.Official || strings.Contains(strings.ToLower(v.Name), "official")
}

func find(videos []Video, match func(Video) bool) (Video, bool) {
	for _, v := range videos {
		if match(v) {
			return v, true
		}
	}
	return Video{}, false
}

// PreferredTrailer picks the first official YouTube trailer, else the first
// YouTube trailer of any kind
func PreferredTrailer(videos []Video) (Video, bool) {
	if v, ok := find(videos, func(v Video) bool { return isYouTubeTrailer(v) && isOfficial(v) }); ok {
		return v, true
	}
	return find(videos, isYouTubeTrailer)
}

// DownloadableVideo is PreferredTrailer falling back to any YouTube video
func DownloadableVideo(videos []Video) (Video, bool) {
	if v, ok := PreferredTrailer(videos); ok {
		return v, true
	}
	return find(videos, isYouTube)
}

// AllTrailers lists every YouTube trailer in upstream order
func AllTrailers(videos []Video) []Trailer {
	trailers := []Trailer{}
	for _, v := range videos {
		if !isYouTubeTrailer(v) {
			continue
		}
		trailers = append(trailers, Trailer{
			Key:      v.Key,
			Name:     v.Name,
			EmbedURL: YouTubeEmbedURL + v.Key,
			WatchURL: YouTubeWatchURL + v.Key,
			Official: v.Official,
		})
	}
	return trailers
}

// TrailerEmbedURL returns the autoplay embed URL of the preferred trailer,
// or "" when there is none
func TrailerEmbedURL(videos []Video) string {
	v, ok := PreferredTrailer(videos)
	if !ok {
		return ""
	}
	return YouTubeEmbedURL + v.Key + "?autoplay=1&rel=0"
}

// HeroEmbedURL is TrailerEmbedURL muted, with controls, for the hero banner
func HeroEmbedURL(videos []Video) string {
	v, ok := PreferredTrailer(videos)
	if !ok {
		return ""
	}
	return YouTubeEmbedURL + v.Key + "?autoplay=1&mute=1&rel=0&controls=1"
}

// WatchURL returns the youtube.com watch page of a video key
func WatchURL(key string) string {
	if key == "" {
		return ""
	}
	return YouTubeWatchURL + key
}

// ImageURL builds an image URL at the given size; a missing path yields
// the placeholder image
func ImageURL(path, size string) string {
	if path == "" {
		return PlaceholderImage
	}
	if size == "" {
		size = "w500"
	}
	return ImageBaseURL + size + path
}

// PosterURL is ImageURL at w780
func PosterURL(path string) string {
	return ImageURL(path, "w780")
}

// BackdropURL returns the w1280 backdrop, or "" when there is no path
func BackdropURL(path string) string {
	if path == "" {
		return ""
	}
	return ImageBaseURL + "w1280" + path
}

// MovieEmbedURL returns the full movie player URL, or "" for id 0
func MovieEmbedURL(id int64) string {
	if id <= 0 {
		return ""
	}
	return MovieEmbedBaseURL + strconv.FormatInt(id, 10)
}
