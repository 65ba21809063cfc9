// Package ui composes catalog results with the viewer's auth state into
// ready-to-render movie cards and serves them as JSON.
package ui

import (
	"context"
	"sync"
)

// Checker answers whether the current viewer is logged in
type Checker interface {
	LoggedIn(ctx context.Context) (bool, error)
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) (bool, error)

// LoggedIn calls f
func (f CheckerFunc) LoggedIn(ctx context.Context) (bool, error) {
	return f(ctx)
}

// AuthState memoises one auth check for the lifetime of a render. It does
// not refresh on its own; Recheck is the only way to ask again.
type AuthState struct {
	checker Checker

	mu    sync.Mutex
	known bool
	value bool
}

// NewAuthState creates an AuthState that asks checker at most once until
// Recheck is called
func NewAuthState(checker Checker) *AuthState {
	return &AuthState{checker: checker}
}

// LoggedIn returns the memoised answer, asking the checker on first use.
// A failed check counts as logged out and is memoised as well.
func (s *AuthState) LoggedIn(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known {
		s.value = s.ask(ctx)
		s.known = true
	}
	return s.value
}

// Recheck asks the checker again and replaces the memoised answer
func (s *AuthState) Recheck(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = s.ask(ctx)
	s.known = true
	return s.value
}

// Set seeds the memo with a known answer
func (s *AuthState) Set(loggedIn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = loggedIn
	s.known = true
}

// ask calls the checker; callers hold mu
func (s *AuthState) ask(ctx context.Context) bool {
	if s.checker == nil {
		return false
	}
	ok, err := s.checker.LoggedIn(ctx)
	if err != nil {
		return false
	}
	return ok
}
