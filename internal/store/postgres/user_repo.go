package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatspark/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, is_active, created_at, last_seen)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, last_seen
	`, u.Username, true).Scan(&u.ID, &u.CreatedAt, &u.LastSeen)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(ctx,
		`SELECT id, username, is_active, created_at, last_seen
		 FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx,
		`SELECT id, username, is_active, created_at, last_seen
		 FROM users WHERE username = $1`, username)
}

func (r *UserRepo) ListActiveSince(ctx context.Context, since time.Time) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, is_active, created_at, last_seen
		FROM users
		WHERE is_active = TRUE AND last_seen >= $1
		ORDER BY id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.IsActive, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.IsActive, &u.CreatedAt, &u.LastSeen,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
