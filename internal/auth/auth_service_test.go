package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"

	"github.com/cineflix/cineflix/internal/remember"
	"github.com/cineflix/cineflix/internal/repository"
	"github.com/cineflix/cineflix/internal/session"
)

// Mock implementations for testing

// mockUserRepository implements repository.UserRepository for testing
type mockUserRepository struct {
	mu       sync.Mutex
	accounts map[int64]*repository.Account
	nextID   int64
	failWith error
	touched  []int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{accounts: make(map[int64]*repository.Account)}
}

func (m *mockUserRepository) Create(ctx context.Context, account *repository.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return repository.ErrEmailAlreadyExists
		}
	}
	m.nextID++
	account.ID = m.nextID
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if a, ok := m.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, a := range m.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, a := range m.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, id)
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now().UTC()
	a.LastLogin = &now
	return nil
}

func (m *mockUserRepository) RecordLogin(ctx context.Context, id int64, ipAddress, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now().UTC()
	a.LastLogin = &now
	a.LastLoginIP = &ipAddress
	a.LastLoginUserAgent = &userAgent
	a.LoginCount++
	return nil
}

// mockLoginEventRepository implements repository.LoginEventRepository for testing
type mockLoginEventRepository struct {
	mu       sync.Mutex
	events   []repository.LoginEvent
	failWith error
}

func (m *mockLoginEventRepository) Record(ctx context.Context, event *repository.LoginEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	event.ID = int64(len(m.events) + 1)
	event.LoginTime = time.Now().UTC()
	m.events = append(m.events, *event)
	return nil
}

func (m *mockLoginEventRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]repository.LoginEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.LoginEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].AccountID == accountID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

type testEnv struct {
	gateway  *Gateway
	users    *mockUserRepository
	events   *mockLoginEventRepository
	sessions *session.Manager
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv() *testEnv {
	users := newMockUserRepository()
	events := &mockLoginEventRepository{}
	sessions := session.NewManager(session.NewMemoryStore(), session.Config{}, discardLogger())
	gateway := NewGateway(GatewayConfig{
		Users:       users,
		LoginEvents: events,
		Sessions:    sessions,
		Remember:    remember.NewIssuer(remember.Config{}, discardLogger()),
		Hasher:      NewPasswordHasher(bcrypt.MinCost),
		Logger:      discardLogger(),
	})
	return &testEnv{gateway: gateway, users: users, events: events, sessions: sessions}
}

func (e *testEnv) seedAccount(t testing.TB, name, email, password string) *repository.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	account := &repository.Account{Name: name, Email: email, PasswordHash: string(hash)}
	require.NoError(t, e.users.Create(context.Background(), account))
	return account
}

func newRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "192.0.2.10:5555"
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// carryCookies copies live cookies from a response onto a new request
func carryCookies(rec *httptest.ResponseRecorder, req *http.Request) *http.Request {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func validSignup() SignupRequest {
	return SignupRequest{
		Name:            "Alice",
		Email:           "alice@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Terms:           true,
	}
}

func TestSignupCreatesAccountAndSession(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()

	user, err := env.gateway.Signup(context.Background(), rec, newRequest(), validSignup())
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	stored, err := env.users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NotNil(t, stored.LastLogin)

	assert.NotNil(t, findCookie(rec, "cineflix_session"))
	theme := findCookie(rec, "user_pref_theme")
	require.NotNil(t, theme)
	assert.Equal(t, "dark", theme.Value)
	assert.False(t, theme.HttpOnly)
	assert.Equal(t, "en", findCookie(rec, "user_pref_language").Value)
}

func TestSignupKeepsExistingPreferences(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	req := newRequest()
	req.AddCookie(&http.Cookie{Name: "user_pref_theme", Value: "light"})

	_, err := env.gateway.Signup(context.Background(), rec, req, validSignup())
	require.NoError(t, err)

	assert.Nil(t, findCookie(rec, "user_pref_theme"))
	assert.NotNil(t, findCookie(rec, "user_pref_language"))
}

func TestSignupAggregatesValidationErrors(t *testing.T) {
	env := newTestEnv()

	_, err := env.gateway.Signup(context.Background(), httptest.NewRecorder(), newRequest(), SignupRequest{
		Name:            "A",
		Email:           "not-an-email",
		Password:        "123",
		ConfirmPassword: "456",
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{
		"Name must be at least 2 characters",
		"Invalid email format",
		"Password must be at least 6 characters",
		"Passwords do not match",
		"You must agree to the terms and conditions",
	}, ve.Messages)
	assert.Equal(t, strings.Join(ve.Messages, ", "), UserMessage(err))
}

func TestSignupRequiredFields(t *testing.T) {
	env := newTestEnv()

	_, err := env.gateway.Signup(context.Background(), httptest.NewRecorder(), newRequest(), SignupRequest{Terms: true})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Name is required", "Email is required", "Password is required"}, ve.Messages)
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv()
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	_, err := env.gateway.Signup(context.Background(), httptest.NewRecorder(), newRequest(), validSignup())
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, MsgEmailExists, UserMessage(err))
}

func TestSignupStoreFailureIsConnectivity(t *testing.T) {
	env := newTestEnv()
	env.users.failWith = errors.New("connection refused")

	_, err := env.gateway.Signup(context.Background(), httptest.NewRecorder(), newRequest(), validSignup())
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.Equal(t, MsgGenericError, UserMessage(err))
}

func TestLoginSuccessRecordsEverything(t *testing.T) {
	env := newTestEnv()
	account := env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	req := newRequest()
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()

	user, err := env.gateway.Login(context.Background(), rec, req, LoginRequest{
		Email:    "alice@example.com",
		Password: "secret1",
		Remember: true,
	})
	require.NoError(t, err)
	assert.Equal(t, account.ID, user.ID)

	stored, _ := env.users.GetByID(context.Background(), account.ID)
	assert.Equal(t, 1, stored.LoginCount)
	assert.Equal(t, "203.0.113.7", *stored.LastLoginIP)
	assert.Equal(t, "test-agent", *stored.LastLoginUserAgent)

	require.Len(t, env.events.events, 1)
	assert.Equal(t, repository.LoginSuccess, env.events.events[0].Status)
	assert.Equal(t, account.ID, env.events.events[0].AccountID)

	cookie := findCookie(rec, remember.CookieName)
	require.NotNil(t, cookie)
	tok, err := remember.Decode(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, account.ID, tok.AccountID)
}

func TestLoginWithoutRememberClearsCookie(t *testing.T) {
	env := newTestEnv()
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	req := newRequest()
	req.AddCookie(&http.Cookie{Name: remember.CookieName, Value: remember.Encode(1, "old")})
	rec := httptest.NewRecorder()

	_, err := env.gateway.Login(context.Background(), rec, req, LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	cookie := findCookie(rec, remember.CookieName)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

// brokenSessionStore fails every write
type brokenSessionStore struct{}

func (brokenSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	return nil, session.ErrNotFound
}

func (brokenSessionStore) Set(ctx context.Context, s *session.Session, ttl time.Duration) error {
	return errors.New("redis: connection refused")
}

func (brokenSessionStore) Delete(ctx context.Context, id string) error { return nil }

func TestLoginSessionFailureLeavesNoRememberCookie(t *testing.T) {
	env := newTestEnv()
	env.gateway.sessions = session.NewManager(brokenSessionStore{}, session.Config{}, discardLogger())
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	rec := httptest.NewRecorder()
	_, err := env.gateway.Login(context.Background(), rec, newRequest(), LoginRequest{
		Email:    "alice@example.com",
		Password: "secret1",
		Remember: true,
	})
	require.ErrorIs(t, err, ErrConnectivity)

	for _, c := range rec.Result().Cookies() {
		if c.Name == remember.CookieName {
			assert.Less(t, c.MaxAge, 0, "remember-me cookie must not survive a failed login")
		}
	}
	assert.Nil(t, findCookie(rec, "cineflix_session"))
}

func TestLoginUnknownEmailRecordsSentinelEvent(t *testing.T) {
	env := newTestEnv()

	_, err := env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, env.events.events, 1)
	assert.Equal(t, repository.UnknownAccountID, env.events.events[0].AccountID)
	assert.Equal(t, repository.LoginFailed, env.events.events[0].Status)
}

func TestLoginWrongPasswordRecordsAccountEvent(t *testing.T) {
	env := newTestEnv()
	account := env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	rec := httptest.NewRecorder()
	_, err := env.gateway.Login(context.Background(), rec, newRequest(), LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, findCookie(rec, "cineflix_session"))

	require.Len(t, env.events.events, 1)
	assert.Equal(t, account.ID, env.events.events[0].AccountID)
	assert.Equal(t, repository.LoginFailed, env.events.events[0].Status)
}

func TestLoginEmailIsCaseSensitive(t *testing.T) {
	env := newTestEnv()
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	_, err := env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), LoginRequest{
		Email:    "Alice@Example.com",
		Password: "secret1",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		req  LoginRequest
		want string
	}{
		{"missing email", LoginRequest{Password: "x"}, MsgLoginRequired},
		{"missing password", LoginRequest{Email: "a@b.com"}, MsgLoginRequired},
		{"malformed email", LoginRequest{Email: "nope", Password: "x"}, MsgInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), tt.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.want, ve.Error())
		})
	}
	assert.Empty(t, env.events.events)
}

func TestLoginEventFailureDoesNotBlockLogin(t *testing.T) {
	env := newTestEnv()
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")
	env.events.failWith = errors.New("disk full")

	_, err := env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), LoginRequest{
		Email:    "alice@example.com",
		Password: "secret1",
	})
	assert.NoError(t, err)
}

func TestLogoutClearsCookiesAndReturnsName(t *testing.T) {
	env := newTestEnv()
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	loginRec := httptest.NewRecorder()
	_, err := env.gateway.Login(context.Background(), loginRec, newRequest(), LoginRequest{
		Email:    "alice@example.com",
		Password: "secret1",
		Remember: true,
	})
	require.NoError(t, err)

	req := carryCookies(loginRec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	req.AddCookie(&http.Cookie{Name: "user_pref_volume", Value: "7"})
	rec := httptest.NewRecorder()

	name := env.gateway.Logout(context.Background(), rec, req)
	assert.Equal(t, "Alice", name)

	for _, cookieName := range []string{"cineflix_session", remember.CookieName, "user_pref_theme", "user_pref_language", "user_pref_volume"} {
		c := findCookie(rec, cookieName)
		if assert.NotNil(t, c, cookieName) {
			assert.Less(t, c.MaxAge, 0, cookieName)
		}
	}

	stale := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	stale.AddCookie(findCookie(loginRec, "cineflix_session"))
	status := env.gateway.CheckAuth(context.Background(), httptest.NewRecorder(), stale)
	assert.False(t, status.LoggedIn)
	assert.Nil(t, status.User)
}

func TestLogoutWithoutSessionSaysGoodbyeToUser(t *testing.T) {
	env := newTestEnv()
	assert.Equal(t, DefaultDisplayName, env.gateway.Logout(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCheckAuthWithSession(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	_, err := env.gateway.Signup(context.Background(), rec, newRequest(), validSignup())
	require.NoError(t, err)

	status := env.gateway.CheckAuth(context.Background(), httptest.NewRecorder(),
		carryCookies(rec, httptest.NewRequest(http.MethodGet, "/auth/check", nil)))
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "alice@example.com", status.User.Email)
}

func TestCheckAuthRestoresFromRememberMe(t *testing.T) {
	env := newTestEnv()
	account := env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	req.AddCookie(&http.Cookie{Name: remember.CookieName, Value: remember.Encode(account.ID, strings.Repeat("ab", 32))})
	rec := httptest.NewRecorder()

	status := env.gateway.CheckAuth(context.Background(), rec, req)
	assert.True(t, status.LoggedIn)
	assert.Equal(t, account.ID, status.User.ID)
	assert.NotNil(t, findCookie(rec, "cineflix_session"))
}

func TestCheckAuthRevokesUnknownRememberMe(t *testing.T) {
	env := newTestEnv()

	for _, value := range []string{remember.Encode(404, "tok"), "!!not-base64!!"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
		req.AddCookie(&http.Cookie{Name: remember.CookieName, Value: value})
		rec := httptest.NewRecorder()

		status := env.gateway.CheckAuth(context.Background(), rec, req)
		assert.False(t, status.LoggedIn)

		cookie := findCookie(rec, remember.CookieName)
		require.NotNil(t, cookie, value)
		assert.Less(t, cookie.MaxAge, 0)
	}
}

func TestLoginHistory(t *testing.T) {
	env := newTestEnv()
	account := env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	for _, pw := range []string{"bad", "secret1"} {
		env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), LoginRequest{Email: "alice@example.com", Password: pw})
	}

	events, err := env.gateway.LoginHistory(context.Background(), account.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, repository.LoginSuccess, events[0].Status)
	assert.Equal(t, repository.LoginFailed, events[1].Status)
}

// Property: unknown email and wrong password are indistinguishable to the caller
func TestPropertyInvalidCredentialsIndistinguishable(t *testing.T) {
	env := newTestEnv()
	env.seedAccount(t, "Alice", "alice@example.com", "secret1")

	rapid.Check(t, func(t *rapid.T) {
		local := rapid.StringMatching(`[a-z]{3,10}`).Draw(t, "local")
		password := rapid.StringMatching(`[a-zA-Z0-9]{6,12}`).Draw(t, "password")
		if password == "secret1" {
			password += "x"
		}

		_, errUnknown := env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), LoginRequest{
			Email: local + "@nowhere.test", Password: password,
		})
		_, errWrong := env.gateway.Login(context.Background(), httptest.NewRecorder(), newRequest(), LoginRequest{
			Email: "alice@example.com", Password: password,
		})

		if UserMessage(errUnknown) != UserMessage(errWrong) {
			t.Fatalf("messages differ: %q vs %q", UserMessage(errUnknown), UserMessage(errWrong))
		}
		if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v / %v", errUnknown, errWrong)
		}
	})
}

// Property: the number of signup violation messages equals the number of
// rules the input breaks
func TestPropertySignupReportsEveryViolation(t *testing.T) {
	forms := NewFormValidator()

	rapid.Check(t, func(t *rapid.T) {
		req := SignupRequest{
			Name:     rapid.SampledFrom([]string{"", "A", "Al", "Alice"}).Draw(t, "name"),
			Email:    rapid.SampledFrom([]string{"", "bad", "a@b.com"}).Draw(t, "email"),
			Password: rapid.SampledFrom([]string{"", "123", "123456", "secret1"}).Draw(t, "password"),
			Terms:    rapid.Bool().Draw(t, "terms"),
		}
		req.ConfirmPassword = rapid.SampledFrom([]string{req.Password, "other"}).Draw(t, "confirm")

		want := 0
		if len(req.Name) < 2 {
			want++
		}
		if req.Email != "a@b.com" {
			want++
		}
		if len(req.Password) < 6 {
			want++
		}
		if req.Password != req.ConfirmPassword {
			want++
		}
		if !req.Terms {
			want++
		}

		err := forms.ValidateSignup(&req)
		got := 0
		var ve *ValidationError
		if errors.As(err, &ve) {
			got = len(ve.Messages)
		} else if err != nil {
			t.Fatalf("unexpected error type: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d messages, got %d (%v)", want, got, err)
		}
	})
}
