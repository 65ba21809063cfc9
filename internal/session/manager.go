package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cineflix/cineflix/internal/metrics"
)

// Config controls the session lifecycle
type Config struct {
	CookieName       string
	IdleTimeout      time.Duration
	RotationInterval time.Duration
	Secure           bool
}

// storeGrace keeps a stored session a little past the idle timeout so that
// the manager, not the store, decides when a session has gone idle
const storeGrace = time.Minute

// Snapshot is the account data captured into a session at login time
type Snapshot struct {
	AccountID     int64
	Name          string
	Email         string
	RememberToken string
}

// Manager evaluates, establishes and destroys sessions for HTTP requests.
// Evaluation is lazy: expiry and rotation happen when a request presents
// the session cookie, never in the background.
type Manager struct {
	store  Store
	cfg    Config
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewManager creates a Manager over store
func NewManager(store Store, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "cineflix_session"
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.RotationInterval <= 0 {
		cfg.RotationInterval = 30 * time.Minute
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// CookieName returns the name of the session cookie
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

type requestStateKey struct{}

// requestState is the session outcome already settled for one request
type requestState struct {
	resolved bool
	current  *Session
}

// WithRequestState prepares ctx for serving one request. Every Manager call
// made with the returned context sees the session as left by the previous
// call, so a rotation or login earlier in the request is not undone by a
// later call that still reads the stale cookie.
func WithRequestState(ctx context.Context) context.Context {
	if stateOf(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, requestStateKey{}, &requestState{})
}

func stateOf(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestStateKey{}).(*requestState)
	return st
}

func (st *requestState) settle(sess *Session) {
	if st != nil {
		st.resolved = true
		st.current = sess
	}
}

// Resume returns the active session for r, or nil when there is none.
// An idle session is destroyed and its cookie expired. A session older than
// the rotation interval is moved to a fresh id carrying the same data.
// Within a request context prepared by WithRequestState the session is
// evaluated once.
func (m *Manager) Resume(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	st := stateOf(ctx)
	if st != nil && st.resolved {
		return st.current, nil
	}

	sess, err := m.resume(ctx, w, r)
	if err != nil {
		return nil, err
	}
	st.settle(sess)
	return sess, nil
}

func (m *Manager) resume(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	id := m.cookieID(r)
	if id == "" {
		return nil, nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.expireCookie(w)
			return nil, nil
		}
		return nil, err
	}

	now := m.now()
	if now.Sub(sess.LastActivity) > m.cfg.IdleTimeout {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("Failed to delete idle session", "error", err)
		}
		m.expireCookie(w)
		metrics.SessionTransitions.WithLabelValues("idle_expired").Inc()
		return nil, nil
	}

	sess.LastActivity = now

	if now.Sub(sess.CreatedAt) >= m.cfg.RotationInterval {
		oldID := sess.ID
		sess.ID = m.newID()
		sess.CreatedAt = now
		if err := m.store.Set(ctx, sess, m.storeTTL()); err != nil {
			return nil, fmt.Errorf("failed to rotate session: %w", err)
		}
		if err := m.store.Delete(ctx, oldID); err != nil {
			m.logger.Warn("Failed to delete rotated session", "error", err)
		}
		m.setCookie(w, sess.ID)
		metrics.SessionTransitions.WithLabelValues("rotated").Inc()
		return sess, nil
	}

	if err := m.store.Set(ctx, sess, m.storeTTL()); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	return sess, nil
}

// Establish starts a new session for snap. Any session id the request
// already carries, or was given earlier in the request, is discarded so
// that a fresh id is always issued.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, snap Snapshot) (*Session, error) {
	st := stateOf(ctx)
	for _, oldID := range m.knownIDs(st, r) {
		if err := m.store.Delete(ctx, oldID); err != nil {
			m.logger.Warn("Failed to discard previous session", "error", err)
		}
	}

	now := m.now()
	sess := &Session{
		ID:            m.newID(),
		AccountID:     snap.AccountID,
		Name:          snap.Name,
		Email:         snap.Email,
		CreatedAt:     now,
		LastActivity:  now,
		RememberToken: snap.RememberToken,
	}

	if err := m.store.Set(ctx, sess, m.storeTTL()); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	m.setCookie(w, sess.ID)
	st.settle(sess)
	metrics.SessionTransitions.WithLabelValues("established").Inc()
	return sess, nil
}

// Destroy ends the session carried by r and returns it. It returns nil
// when the request had no live session; the cookie is expired either way.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	st := stateOf(ctx)
	id := m.cookieID(r)
	if st != nil && st.resolved {
		id = ""
		if st.current != nil {
			id = st.current.ID
		}
	}
	m.expireCookie(w)
	st.settle(nil)
	if id == "" {
		return nil, nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return sess, err
	}
	metrics.SessionTransitions.WithLabelValues("destroyed").Inc()
	return sess, nil
}

// knownIDs lists the session ids the request may still hold
func (m *Manager) knownIDs(st *requestState, r *http.Request) []string {
	var ids []string
	if id := m.cookieID(r); id != "" {
		ids = append(ids, id)
	}
	if st != nil && st.current != nil && st.current.ID != m.cookieID(r) {
		ids = append(ids, st.current.ID)
	}
	return ids
}

func (m *Manager) storeTTL() time.Duration {
	return m.cfg.IdleTimeout + storeGrace
}

func (m *Manager) cookieID(r *http.Request) string {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
