package events

import (
	"context"
	"encoding/json"
	"fmt"
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

// OutboxEvent is a pending domain event awaiting delivery.
type OutboxEvent struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxStore persists domain events in the same database as the state
// change that produced them, so delivery survives crashes between the
// write and the side effect.
type OutboxStore struct {
	pool dbtx
}

// NewOutboxStore creates an outbox store backed by pgx pool.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithDB(db dbtx) *OutboxStore {
	return &OutboxStore{pool: db}
}

// Insert marshals the payload and enqueues it for delivery.
func (s *OutboxStore) Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal outbox payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox_events (id, event_type, payload)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, query, id, eventType, body); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox event: %w", err)
	}
	return id, nil
}

// FetchPending returns up to limit undelivered events, oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int) ([]OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, created_at
		FROM outbox_events
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkDelivered stamps an event as delivered.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET delivered_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("events: mark delivered: %w", err)
	}
	return nil
}
