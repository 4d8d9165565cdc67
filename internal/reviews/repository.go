package reviews

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

// Repository stores provider reviews.
type Repository struct {
	pool dbtx
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("reviews: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(db dbtx) *Repository {
	return &Repository{pool: db}
}

// Insert persists a review. One review per user per provider.
func (r *Repository) Insert(ctx context.Context, rev *Review) error {
	query := `
		INSERT INTO reviews (id, provider_id, user_id, rating, comment, verified_booking)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		rev.ID, rev.ProviderID, rev.UserID, rev.Rating, rev.Comment, rev.VerifiedBooking,
	).Scan(&rev.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("reviews: insert: %w", err)
	}
	return nil
}

// ListByProvider returns a provider's reviews, newest first.
func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Review, error) {
	query := `
		SELECT r.id, r.provider_id, r.user_id, r.rating, r.comment, r.verified_booking, u.full_name, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.provider_id = $1
		ORDER BY r.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("reviews: list: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var rev Review
		if err := rows.Scan(
			&rev.ID, &rev.ProviderID, &rev.UserID, &rev.Rating, &rev.Comment,
			&rev.VerifiedBooking, &rev.ReviewerName, &rev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("reviews: scan: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// Summary returns review aggregates for a provider.
func (r *Repository) Summary(ctx context.Context, providerID uuid.UUID) (*ProviderSummary, error) {
	query := `
		SELECT count(*), coalesce(avg(rating), 0)
		FROM reviews
		WHERE provider_id = $1
	`
	s := &ProviderSummary{ProviderID: providerID}
	if err := r.pool.QueryRow(ctx, query, providerID).Scan(&s.ReviewCount, &s.AverageRating); err != nil {
		return nil, fmt.Errorf("reviews: summary: %w", err)
	}
	return s, nil
}

// HasCompletedBooking reports whether the user finished a visit with the
// provider. Drives the verified_booking flag.
func (r *Repository) HasCompletedBooking(ctx context.Context, userID, providerID uuid.UUID) (bool, error) {
	query := `
		SELECT 1
		FROM bookings
		WHERE user_id = $1 AND provider_id = $2 AND status = 'completed'
		LIMIT 1
	`
	var one int
	if err := r.pool.QueryRow(ctx, query, userID, providerID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("reviews: completed booking lookup: %w", err)
	}
	return true, nil
}
