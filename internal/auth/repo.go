package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, `SELECT id, email, name, password_hash, is_active, created_at, updated_at
FROM users WHERE email=$1`, email)
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findUser(ctx, `SELECT id, email, name, password_hash, is_active, created_at, updated_at
FROM users WHERE id=$1`, id)
}

func (r *PGRepository) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO auth_sessions (id, user_id, created_at, expires_at, ip, ua)
VALUES ($1,$2,NOW(),$3,NULLIF($4,''),NULLIF($5,''))`, id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id=$1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
