package repository

import (
	"time"
)

// UnknownAccountID is recorded on login events for emails with no account
const UnknownAccountID int64 = 0

// LoginStatus is the outcome of one login attempt
type LoginStatus string

const (
	LoginSuccess LoginStatus = "success"
	LoginFailed  LoginStatus = "failed"
)

// Account represents a registered user in the users table
type Account struct {
	ID                 int64      `db:"id"`
	Name               string     `db:"name"`
	Email              string     `db:"email"`
	PasswordHash       string     `db:"password_hash"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	LastLogin          *time.Time `db:"last_login"`
	LastLoginIP        *string    `db:"last_login_ip"`
	LastLoginUserAgent *string    `db:"last_login_user_agent"`
	LoginCount         int        `db:"login_count"`
}

// LoginEvent is an append-only audit record of one authentication attempt
type LoginEvent struct {
	ID        int64       `db:"id"`
	AccountID int64       `db:"user_id"`
	LoginTime time.Time   `db:"login_time"`
	IPAddress string      `db:"ip_address"`
	UserAgent string      `db:"user_agent"`
	Status    LoginStatus `db:"login_status"`
}

// SavedMovie is one entry of an account's server-side movie list
type SavedMovie struct {
	ID      int64     `db:"id"`
	UserID  int64     `db:"user_id"`
	MovieID int64     `db:"movie_id"`
	AddedAt time.Time `db:"added_at"`
}
