package auth

import (
	"net/http"
	"strings"
	"time"
)

// PreferencePrefix prefixes every preference cookie name
const PreferencePrefix = "user_pref_"

const preferenceMaxAge = 365 * 24 * time.Hour

// Default preference values seeded after signup and login
var defaultPreferences = []struct{ key, value string }{
	{"theme", "dark"},
	{"language", "en"},
}

// Preferences reads and writes user_pref_* cookies. They stay readable by
// page script, so they are not HttpOnly.
type Preferences struct {
	Secure bool
}

// Get returns a preference value and whether it is set
func (p Preferences) Get(r *http.Request, key string) (string, bool) {
	cookie, err := r.Cookie(PreferencePrefix + key)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// Set writes a preference cookie for one year
func (p Preferences) Set(w http.ResponseWriter, key, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     PreferencePrefix + key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(preferenceMaxAge.Seconds()),
		Expires:  time.Now().Add(preferenceMaxAge),
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SeedDefaults sets the default theme and language when they are unset
func (p Preferences) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	for _, def := range defaultPreferences {
		if _, ok := p.Get(r, def.key); !ok {
			p.Set(w, def.key, def.value)
		}
	}
}

// ClearAll expires every preference cookie the request carries
func (p Preferences) ClearAll(w http.ResponseWriter, r *http.Request) {
	for _, cookie := range r.Cookies() {
		if !strings.HasPrefix(cookie.Name, PreferencePrefix) {
			continue
		}
		http.SetCookie(w, &http.Cookie{
			Name:    cookie.Name,
			Value:   "",
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Unix(0, 0),
			Secure:  p.Secure,
		})
	}
}
