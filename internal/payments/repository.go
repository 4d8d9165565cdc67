package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medport-health/medport-api/internal/bookings"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists payment intent records. It implements
// bookings.IntentStore; one row per booking, replaced when a new intent is
// issued.
type Repository struct {
	pool dbtx
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(db dbtx) *Repository {
	return &Repository{pool: db}
}

// SaveIntent upserts the intent record for a booking.
func (r *Repository) SaveIntent(ctx context.Context, rec bookings.IntentRecord) (*bookings.IntentRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO payment_intents (id, booking_id, intent_id, amount_cents, currency, price_version, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (booking_id) DO UPDATE
		SET intent_id = EXCLUDED.intent_id,
		    amount_cents = EXCLUDED.amount_cents,
		    currency = EXCLUDED.currency,
		    price_version = EXCLUDED.price_version,
		    status = EXCLUDED.status,
		    updated_at = now()
		RETURNING id, created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.BookingID, rec.IntentID, rec.AmountCents, rec.Currency, rec.PriceVersion, rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("payments: save intent: %w", err)
	}
	return &rec, nil
}

// LatestIntent returns the last-issued intent for a booking, or nil when
// none exists.
func (r *Repository) LatestIntent(ctx context.Context, bookingID uuid.UUID) (*bookings.IntentRecord, error) {
	query := `
		SELECT id, booking_id, intent_id, amount_cents, currency, price_version, status, created_at, updated_at
		FROM payment_intents
		WHERE booking_id = $1
	`
	var rec bookings.IntentRecord
	if err := r.pool.QueryRow(ctx, query, bookingID).Scan(
		&rec.ID, &rec.BookingID, &rec.IntentID, &rec.AmountCents,
		&rec.Currency, &rec.PriceVersion, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("payments: select intent: %w", err)
	}
	return &rec, nil
}

// MarkIntentStatus records the processor-reported status for an intent.
func (r *Repository) MarkIntentStatus(ctx context.Context, intentID, status string) error {
	query := `UPDATE payment_intents SET status = $2, updated_at = now() WHERE intent_id = $1`
	if _, err := r.pool.Exec(ctx, query, intentID, status); err != nil {
		return fmt.Errorf("payments: mark intent status: %w", err)
	}
	return nil
}
