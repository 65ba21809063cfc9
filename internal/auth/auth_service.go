package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/internal/metrics"
	"github.com/cineflix/cineflix/internal/remember"
	"github.com/cineflix/cineflix/internal/repository"
	"github.com/cineflix/cineflix/internal/session"
)

// DefaultDisplayName is used in farewell messages when no name is known
const DefaultDisplayName = "User"

// UserSnapshot is the account data carried by a session
type UserSnapshot struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthStatus is the answer to "is this browser logged in"
type AuthStatus struct {
	LoggedIn bool          `json:"logged_in"`
	User     *UserSnapshot `json:"user"`
}

func snapshotOf(s *session.Session) *UserSnapshot {
	return &UserSnapshot{ID: s.AccountID, Name: s.Name, Email: s.Email}
}

// Gateway implements signup, login, logout and auth checks on top of the
// credential store, the session manager and the remember-me issuer
type Gateway struct {
	users       repository.UserRepository
	loginEvents repository.LoginEventRepository
	sessions    *session.Manager
	remember    *remember.Issuer
	hasher      *PasswordHasher
	forms       *FormValidator
	prefs       Preferences
	logger      *slog.Logger
}

// GatewayConfig holds the Gateway collaborators
type GatewayConfig struct {
	Users         repository.UserRepository
	LoginEvents   repository.LoginEventRepository
	Sessions      *session.Manager
	Remember      *remember.Issuer
	Hasher        *PasswordHasher
	SecureCookies bool
	Logger        *slog.Logger
}

// NewGateway creates a new Gateway instance
func NewGateway(cfg GatewayConfig) *Gateway {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	return &Gateway{
		users:       cfg.Users,
		loginEvents: cfg.LoginEvents,
		sessions:    cfg.Sessions,
		remember:    cfg.Remember,
		hasher:      hasher,
		forms:       NewFormValidator(),
		prefs:       Preferences{Secure: cfg.SecureCookies},
		logger:      log,
	}
}

// Signup registers an account and logs it in
func (g *Gateway) Signup(ctx context.Context, w http.ResponseWriter, r *http.Request, req SignupRequest) (*UserSnapshot, error) {
	log := logger.WithCorrelationID(ctx, g.logger)

	if err := g.forms.ValidateSignup(&req); err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "invalid").Inc()
		return nil, err
	}

	exists, err := g.users.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, g.fail("signup", wrapConnectivity("check email", err))
	}
	if exists {
		metrics.AuthAttempts.WithLabelValues("signup", "conflict").Inc()
		return nil, ErrEmailExists
	}

	hash, err := g.hasher.Hash(req.Password)
	if err != nil {
		return nil, g.fail("signup", err)
	}

	account := &repository.Account{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := g.users.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyExists) {
			metrics.AuthAttempts.WithLabelValues("signup", "conflict").Inc()
			return nil, ErrEmailExists
		}
		return nil, g.fail("signup", wrapConnectivity("create account", err))
	}

	sess, err := g.sessions.Establish(ctx, w, r, session.Snapshot{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
	})
	if err != nil {
		return nil, g.fail("signup", wrapConnectivity("establish session", err))
	}

	if err := g.users.TouchLastLogin(ctx, account.ID); err != nil {
		log.Warn("Failed to update last login after signup", "account_id", account.ID, "error", err)
	}

	g.prefs.SeedDefaults(w, r)

	metrics.AuthAttempts.WithLabelValues("signup", "success").Inc()
	log.Info("Account created", "account_id", account.ID)
	return snapshotOf(sess), nil
}

// Login checks credentials and starts a session. Unknown emails and wrong
// passwords fail with the same ErrInvalidCredentials.
func (g *Gateway) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, req LoginRequest) (*UserSnapshot, error) {
	log := logger.WithCorrelationID(ctx, g.logger)

	if err := g.forms.ValidateLogin(&req); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "invalid").Inc()
		return nil, err
	}

	ipAddress := getClientIP(r)
	userAgent := getUserAgent(r)

	account, err := g.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			g.recordEvent(ctx, repository.UnknownAccountID, ipAddress, userAgent, repository.LoginFailed)
			metrics.AuthAttempts.WithLabelValues("login", "failed").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, g.fail("login", wrapConnectivity("lookup account", err))
	}

	if !g.hasher.Verify(req.Password, account.PasswordHash) {
		g.recordEvent(ctx, account.ID, ipAddress, userAgent, repository.LoginFailed)
		metrics.AuthAttempts.WithLabelValues("login", "failed").Inc()
		return nil, ErrInvalidCredentials
	}

	if err := g.users.RecordLogin(ctx, account.ID, ipAddress, userAgent); err != nil {
		return nil, g.fail("login", wrapConnectivity("record login", err))
	}
	g.recordEvent(ctx, account.ID, ipAddress, userAgent, repository.LoginSuccess)

	var rememberToken string
	if req.Remember {
		rememberToken, err = g.remember.Mint(account.ID)
		if err != nil {
			return nil, g.fail("login", err)
		}
	}

	sess, err := g.sessions.Establish(ctx, w, r, session.Snapshot{
		AccountID:     account.ID,
		Name:          account.Name,
		Email:         account.Email,
		RememberToken: rememberToken,
	})
	if err != nil {
		g.remember.Revoke(w)
		return nil, g.fail("login", wrapConnectivity("establish session", err))
	}

	// The remember-me cookie goes out only once the session exists
	if req.Remember {
		g.remember.SetCookie(w, account.ID, rememberToken)
	} else {
		g.remember.Revoke(w)
	}

	g.prefs.SeedDefaults(w, r)

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	log.Info("Login succeeded", "account_id", account.ID, "remember", req.Remember)
	return snapshotOf(sess), nil
}

// Logout destroys the session and clears preference and remember-me
// cookies. It returns the name to say goodbye to.
func (g *Gateway) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) string {
	name := DefaultDisplayName

	sess, err := g.sessions.Destroy(ctx, w, r)
	if err != nil {
		logger.WithCorrelationID(ctx, g.logger).Warn("Failed to destroy session", "error", err)
	}
	if sess != nil && sess.Name != "" {
		name = sess.Name
	}

	g.prefs.ClearAll(w, r)
	g.remember.Revoke(w)

	metrics.AuthAttempts.WithLabelValues("logout", "success").Inc()
	return name
}

// CheckAuth resumes the session, falling back to the remember-me cookie
// when there is none. Store failures are logged and count as logged out.
func (g *Gateway) CheckAuth(ctx context.Context, w http.ResponseWriter, r *http.Request) AuthStatus {
	log := logger.WithCorrelationID(ctx, g.logger)

	sess, err := g.sessions.Resume(ctx, w, r)
	if err != nil {
		log.Error("Failed to resume session", "error", err)
		return AuthStatus{}
	}
	if sess != nil {
		return AuthStatus{LoggedIn: true, User: snapshotOf(sess)}
	}

	sess = g.restoreFromRemember(ctx, w, r, log)
	if sess == nil {
		return AuthStatus{}
	}
	return AuthStatus{LoggedIn: true, User: snapshotOf(sess)}
}

func (g *Gateway) restoreFromRemember(ctx context.Context, w http.ResponseWriter, r *http.Request, log *slog.Logger) *session.Session {
	tok, err := g.remember.Read(r)
	if errors.Is(err, remember.ErrMissing) {
		return nil
	}
	if err != nil {
		g.remember.Revoke(w)
		metrics.AuthAttempts.WithLabelValues("remember", "invalid").Inc()
		return nil
	}

	accountID, err := g.remember.Verify(tok)
	if err != nil {
		g.remember.Revoke(w)
		metrics.AuthAttempts.WithLabelValues("remember", "invalid").Inc()
		return nil
	}

	account, err := g.users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			g.remember.Revoke(w)
			metrics.AuthAttempts.WithLabelValues("remember", "invalid").Inc()
			return nil
		}
		log.Error("Remember-me lookup failed", "error", err)
		return nil
	}

	sess, err := g.sessions.Establish(ctx, w, r, session.Snapshot{
		AccountID:     account.ID,
		Name:          account.Name,
		Email:         account.Email,
		RememberToken: tok.Secret,
	})
	if err != nil {
		log.Error("Failed to restore session from remember-me", "error", err)
		return nil
	}

	metrics.AuthAttempts.WithLabelValues("remember", "success").Inc()
	return sess
}

// LoginHistory returns the most recent login events of an account
func (g *Gateway) LoginHistory(ctx context.Context, accountID int64, limit int) ([]repository.LoginEvent, error) {
	events, err := g.loginEvents.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, wrapConnectivity("list login events", err)
	}
	return events, nil
}

func (g *Gateway) recordEvent(ctx context.Context, accountID int64, ipAddress, userAgent string, status repository.LoginStatus) {
	event := &repository.LoginEvent{
		AccountID: accountID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Status:    status,
	}
	if err := g.loginEvents.Record(ctx, event); err != nil {
		logger.WithCorrelationID(ctx, g.logger).Warn("Failed to record login event",
			"account_id", accountID, "status", status, "error", err)
	}
}

func (g *Gateway) fail(operation string, err error) error {
	metrics.AuthAttempts.WithLabelValues(operation, "error").Inc()
	return err
}
