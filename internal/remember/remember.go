// Package remember issues and reads the long-lived remember-me cookie that
// restores a session after the browser session cookie is gone.
package remember

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the name of the remember-me cookie
const CookieName = "remember_me"

// tokenBytes is the amount of randomness in an unsigned token
const tokenBytes = 32

var (
	// ErrMissing is returned by Read when the request has no remember-me cookie
	ErrMissing = errors.New("remember-me cookie not present")
	// ErrMalformed is returned when the cookie value cannot be decoded
	ErrMalformed = errors.New("malformed remember-me cookie")
	// ErrInvalid is returned when a decoded token is rejected
	ErrInvalid = errors.New("invalid remember-me token")
)

// Token is the decoded content of a remember-me cookie
type Token struct {
	AccountID int64
	Secret    string
}

// Config holds remember-me cookie settings
type Config struct {
	Expiry time.Duration
	Secure bool
	// SigningKey switches to signed tokens that are verified on read
	SigningKey string
}

// Issuer writes, reads and verifies remember-me cookies
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer creates an Issuer. Without a signing key the embedded account
// id is trusted as is, which is logged as a warning.
func NewIssuer(cfg Config, logger *slog.Logger) *Issuer {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SigningKey == "" {
		logger.Warn("Remember-me tokens are not verified server-side; set REMEMBER_ME_SIGNING_KEY to enable signed tokens")
	}
	return &Issuer{cfg: cfg, now: time.Now}
}

// Signed reports whether tokens are signed and verified
func (i *Issuer) Signed() bool {
	return i.cfg.SigningKey != ""
}

// Issue sets a fresh remember-me cookie for accountID and returns its secret
func (i *Issuer) Issue(w http.ResponseWriter, accountID int64) (string, error) {
	secret, err := i.Mint(accountID)
	if err != nil {
		return "", err
	}
	i.SetCookie(w, accountID, secret)
	return secret, nil
}

// Mint generates a remember-me secret for accountID without sending it
func (i *Issuer) Mint(accountID int64) (string, error) {
	return i.newSecret(accountID)
}

// SetCookie sends the remember-me cookie carrying secret
func (i *Issuer) SetCookie(w http.ResponseWriter, accountID int64, secret string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    Encode(accountID, secret),
		Path:     "/",
		MaxAge:   int(i.cfg.Expiry.Seconds()),
		Expires:  i.now().Add(i.cfg.Expiry),
		HttpOnly: true,
		Secure:   i.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Revoke expires the remember-me cookie
func (i *Issuer) Revoke(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   i.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read decodes the remember-me cookie carried by r
func (i *Issuer) Read(r *http.Request) (Token, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Token{}, ErrMissing
	}
	return Decode(cookie.Value)
}

// Verify returns the account id a token may restore
func (i *Issuer) Verify(tok Token) (int64, error) {
	if tok.AccountID <= 0 {
		return 0, ErrInvalid
	}
	if !i.Signed() {
		return tok.AccountID, nil
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Secret, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(i.cfg.SigningKey), nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Subject != strconv.FormatInt(tok.AccountID, 10) {
		return 0, fmt.Errorf("%w: subject mismatch", ErrInvalid)
	}
	return tok.AccountID, nil
}

func (i *Issuer) newSecret(accountID int64) (string, error) {
	random := make([]byte, tokenBytes)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to generate remember-me token: %w", err)
	}
	if !i.Signed() {
		return hex.EncodeToString(random), nil
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(accountID, 10),
		ID:        hex.EncodeToString(random[:16]),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.Expiry)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.SigningKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign remember-me token: %w", err)
	}
	return signed, nil
}

// Encode builds the cookie value base64("<id>:<secret>")
func Encode(accountID int64, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(accountID, 10) + ":" + secret))
}

// Decode reverses Encode. The decoded text must split into exactly two
// colon-separated parts; a non-numeric id decodes as 0.
func Decode(value string) (Token, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return Token{}, ErrMalformed
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 2 {
		return Token{}, ErrMalformed
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		id = 0
	}
	return Token{AccountID: id, Secret: parts[1]}, nil
}
