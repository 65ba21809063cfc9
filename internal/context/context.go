package context

import (
	"context"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// AccountIDKey is the context key for the logged-in account id
	AccountIDKey ContextKey = "account_id"
	// NameKey is the context key for the display name captured at login
	NameKey ContextKey = "name"
	// EmailKey is the context key for the email captured at login
	EmailKey ContextKey = "email"
)

// WithAccount stores the logged-in account's session snapshot in ctx
func WithAccount(ctx context.Context, accountID int64, name, email string) context.Context {
	ctx = context.WithValue(ctx, AccountIDKey, accountID)
	ctx = context.WithValue(ctx, NameKey, name)
	return context.WithValue(ctx, EmailKey, email)
}

// ExtractAccountID extracts the account id from the request context
func ExtractAccountID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(AccountIDKey).(int64)
	return id, ok && id > 0
}

// ExtractName extracts the display name from the request context
func ExtractName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(NameKey).(string)
	return name, ok
}

// ExtractEmail extracts the email from the request context
func ExtractEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}
