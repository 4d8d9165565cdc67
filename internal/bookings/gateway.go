package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IntentRequest asks the payment gateway for an intent covering a booking.
// Amount and currency always come from the catalog's treatment price, never
// from client input. PriceVersion feeds the gateway's idempotency key so a
// price change mid-flow produces a fresh intent while plain retries reuse
// the previous one.
type IntentRequest struct {
	BookingID    uuid.UUID
	UserID       uuid.UUID
	AmountCents  int64
	Currency     string
	PriceVersion int64
	Description  string
}

// PaymentIntent is the processor-side object representing an authorized
// pending charge. ClientSecret is a capability token for the payment widget;
// it is returned to the owning user once and never persisted or logged.
type PaymentIntent struct {
	ID           string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// CaptureResult is the processor's authoritative answer about a charge.
type CaptureResult struct {
	Succeeded   bool
	AmountCents int64
	Currency    string
}

// PaymentGateway isolates all external-processor interaction. Implementations
// do not retry; transient failures surface as a retryable gateway error and
// the retry policy belongs to the caller.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error)
	VerifyCapture(ctx context.Context, intentID string) (*CaptureResult, error)
}

// IntentRecord tracks the last-issued intent for a booking so duplicate
// payment requests reuse it and confirmation can resolve the intent id.
type IntentRecord struct {
	ID           uuid.UUID
	BookingID    uuid.UUID
	IntentID     string
	AmountCents  int64
	Currency     string
	PriceVersion int64
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IntentStore persists payment intent records.
type IntentStore interface {
	// SaveIntent upserts the record keyed on booking id.
	SaveIntent(ctx context.Context, rec IntentRecord) (*IntentRecord, error)
	// LatestIntent returns the last-issued intent for a booking, or nil when
	// none exists.
	LatestIntent(ctx context.Context, bookingID uuid.UUID) (*IntentRecord, error)
	// MarkIntentStatus records the terminal processor status for an intent.
	MarkIntentStatus(ctx context.Context, intentID, status string) error
}
