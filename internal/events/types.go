package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type names written to the outbox.
const (
	TypeBookingConfirmed = "booking.confirmed.v1"
	TypeBookingCancelled = "booking.cancelled.v1"
	TypeBookingCompleted = "booking.completed.v1"
)

// BookingConfirmedV1 is emitted after a booking transitions to confirmed
// with a verified capture behind it.
type BookingConfirmedV1 struct {
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	ProviderID  uuid.UUID `json:"provider_id"`
	IntentID    string    `json:"intent_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BookingStatusChangedV1 is emitted for cancellations and completions.
type BookingStatusChangedV1 struct {
	BookingID  uuid.UUID `json:"booking_id"`
	UserID     uuid.UUID `json:"user_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Status     string    `json:"status"`
	ChangedAt  time.Time `json:"changed_at"`
}
