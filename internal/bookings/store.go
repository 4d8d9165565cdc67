package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// Store provides persistence for bookings. Status changes go through
// compare-and-set updates keyed on the current status so concurrent
// transitions can never double-apply.
type Store struct {
	pool dbtx
}

// NewStore creates a store backed by pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithDB(db dbtx) *Store {
	return &Store{pool: db}
}

// Insert persists a new pending booking.
func (s *Store) Insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, provider_id, treatment_price_id, appointment_date, special_requests, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	if err := s.pool.QueryRow(ctx, query,
		b.ID, b.UserID, b.ProviderID, b.TreatmentPriceID,
		b.AppointmentDate, b.SpecialRequests, b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

// Get fetches a booking by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `
		SELECT id, user_id, provider_id, treatment_price_id, appointment_date, special_requests, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	var b Booking
	if err := s.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.UserID, &b.ProviderID, &b.TreatmentPriceID,
		&b.AppointmentDate, &b.SpecialRequests, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: select: %w", err)
	}
	return &b, nil
}

// UpdateStatusCAS transitions a booking from one status to another only if
// it is still in the expected status. It returns the updated booking and
// whether the write was applied; a lost race returns (nil, false, nil) and
// the record is unchanged.
func (s *Store) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, bool, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING id, user_id, provider_id, treatment_price_id, appointment_date, special_requests, status, created_at, updated_at
	`
	var b Booking
	if err := s.pool.QueryRow(ctx, query, id, from, to).Scan(
		&b.ID, &b.UserID, &b.ProviderID, &b.TreatmentPriceID,
		&b.AppointmentDate, &b.SpecialRequests, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("bookings: status cas: %w", err)
	}
	return &b, true, nil
}

// UpdateSpecialRequests edits the free-text notes on a booking that has not
// been confirmed yet.
func (s *Store) UpdateSpecialRequests(ctx context.Context, id uuid.UUID, text string) (*Booking, error) {
	query := `
		UPDATE bookings
		SET special_requests = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, user_id, provider_id, treatment_price_id, appointment_date, special_requests, status, created_at, updated_at
	`
	var b Booking
	if err := s.pool.QueryRow(ctx, query, id, text).Scan(
		&b.ID, &b.UserID, &b.ProviderID, &b.TreatmentPriceID,
		&b.AppointmentDate, &b.SpecialRequests, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("bookings: update special requests: %w", err)
	}
	return &b, nil
}

// ListFilter narrows List results. UserID/ProviderID scope visibility;
// Search matches patient or treatment names case-insensitively.
type ListFilter struct {
	UserID     *uuid.UUID
	ProviderID *uuid.UUID
	Status     Status
	Date       *time.Time
	Search     string
}

// List returns bookings joined with display fields, newest appointment
// first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Summary, error) {
	query := `
		SELECT b.id, b.user_id, b.provider_id, b.treatment_price_id, b.appointment_date,
		       b.special_requests, b.status, b.created_at, b.updated_at,
		       u.full_name, p.name, tp.treatment_name, tp.amount_cents, tp.currency
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN providers p ON p.id = b.provider_id
		JOIN treatment_prices tp ON tp.id = b.treatment_price_id
		WHERE ($1::uuid IS NULL OR b.user_id = $1)
		  AND ($2::uuid IS NULL OR b.provider_id = $2)
		  AND ($3 = '' OR b.status = $3)
		  AND ($4::timestamptz IS NULL OR b.appointment_date::date = $4::date)
		  AND ($5 = '' OR u.full_name ILIKE '%' || $5 || '%' OR tp.treatment_name ILIKE '%' || $5 || '%')
		ORDER BY b.appointment_date DESC
	`
	rows, err := s.pool.Query(ctx, query,
		f.UserID, f.ProviderID, string(f.Status), f.Date, strings.TrimSpace(f.Search),
	)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(
			&sum.ID, &sum.UserID, &sum.ProviderID, &sum.TreatmentPriceID, &sum.AppointmentDate,
			&sum.SpecialRequests, &sum.Status, &sum.CreatedAt, &sum.UpdatedAt,
			&sum.PatientName, &sum.ProviderName, &sum.TreatmentName, &sum.AmountCents, &sum.Currency,
		); err != nil {
			return nil, fmt.Errorf("bookings: scan list row: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
