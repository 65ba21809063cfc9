package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// LoginEventRepository defines the interface for the login audit trail
type LoginEventRepository interface {
	Record(ctx context.Context, event *LoginEvent) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]LoginEvent, error)
}

// LoginEventRepo implements LoginEventRepository using PostgreSQL via sqlx
type LoginEventRepo struct {
	db *sqlx.DB
}

// NewLoginEventRepo creates a new LoginEventRepo instance
func NewLoginEventRepo(db *sqlx.DB) *LoginEventRepo {
	return &LoginEventRepo{db: db}
}

// Record appends one login event. Events are never updated or deleted.
func (r *LoginEventRepo) Record(ctx context.Context, event *LoginEvent) error {
	query := `
		INSERT INTO login_history (user_id, ip_address, user_agent, login_status)
		VALUES (:user_id, :ip_address, :user_agent, :login_status)
		RETURNING id, login_time
	`

	query, args, err := r.db.BindNamed(query, event)
	if err != nil {
		return err
	}
	return r.db.QueryRowxContext(ctx, query, args...).Scan(&event.ID, &event.LoginTime)
}

// ListByAccount returns the most recent events for an account, newest first
func (r *LoginEventRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]LoginEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, user_id, login_time, COALESCE(ip_address, '') AS ip_address,
			COALESCE(user_agent, '') AS user_agent, login_status
		FROM login_history
		WHERE user_id = $1
		ORDER BY login_time DESC, id DESC
		LIMIT $2
	`

	events := []LoginEvent{}
	if err := r.db.SelectContext(ctx, &events, query, accountID, limit); err != nil {
		return nil, err
	}
	return events, nil
}
