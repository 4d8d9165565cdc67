package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedStore records externally-delivered event ids (Stripe webhook
// events) so redeliveries become no-ops.
type ProcessedStore struct {
	pool dbtx
}

// NewProcessedStore creates a processed-event store backed by pgx pool.
func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithDB(db dbtx) *ProcessedStore {
	return &ProcessedStore{pool: db}
}

// AlreadyProcessed reports whether the external event id was seen before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE event_id = $1`
	var one int
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records the external event id. Duplicate marks are
// harmless.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, source string) error {
	query := `
		INSERT INTO processed_events (event_id, source)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, eventID, source); err != nil {
		return fmt.Errorf("events: mark processed: %w", err)
	}
	return nil
}
