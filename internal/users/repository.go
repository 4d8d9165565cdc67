package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores user accounts.
type Repository struct {
	pool dbtx
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(db dbtx) *Repository {
	return &Repository{pool: db}
}

// Insert persists a new account.
func (r *Repository) Insert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, full_name, phone, role, password_hash)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		u.ID, u.Email, u.FullName, u.Phone, u.Role, u.PasswordHash,
	).Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

// GetByEmail fetches an account by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, full_name, phone, role, password_hash, created_at
		FROM users
		WHERE email = lower($1)
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

// GetByID fetches an account by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, full_name, phone, role, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// ProviderIDForUser returns the provider profile owned by a user, or
// uuid.Nil when the user has none.
func (r *Repository) ProviderIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	query := `SELECT id FROM providers WHERE user_id = $1`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("users: provider lookup: %w", err)
	}
	return id, nil
}

func (r *Repository) scanOne(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.PasswordHash, &u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: select: %w", err)
	}
	return &u, nil
}
