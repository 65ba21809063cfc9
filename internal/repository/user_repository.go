package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations
const pgUniqueViolation = "23505"

// UserRepository defines the interface for account data access
type UserRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	TouchLastLogin(ctx context.Context, id int64) error
	RecordLogin(ctx context.Context, id int64, ipAddress, userAgent string) error
}

// userRepository implements UserRepository using PostgreSQL
type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const accountColumns = `id, name, email, password_hash, created_at, updated_at,
	last_login, last_login_ip, last_login_user_agent, login_count`

// Create inserts a new account and fills in its generated columns
func (r *userRepository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at, login_count
	`

	err := r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt, &account.LoginCount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailAlreadyExists
		}
		return err
	}

	return nil
}

// GetByID retrieves an account by id
func (r *userRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves an account by its exact email address
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) scanOne(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.LastLogin,
		&account.LastLoginIP,
		&account.LastLoginUserAgent,
		&account.LoginCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return account, nil
}

// EmailExists checks whether an email address is already registered
func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// TouchLastLogin sets last_login to now without counting a login
func (r *userRepository) TouchLastLogin(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordLogin stores the login metadata and increments login_count in one statement
func (r *userRepository) RecordLogin(ctx context.Context, id int64, ipAddress, userAgent string) error {
	query := `
		UPDATE users
		SET last_login = NOW(),
			last_login_ip = $1,
			last_login_user_agent = $2,
			login_count = login_count + 1
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, ipAddress, userAgent, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
