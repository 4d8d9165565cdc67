package bookings

import (
	"time"

	"github.com/google/uuid"

	"github.com/medport-health/medport-api/internal/identity"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Booking is an appointment request against a provider's priced treatment.
// Identity fields are immutable after creation; only special_requests (before
// confirmation) and status ever change.
type Booking struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	ProviderID       uuid.UUID `json:"provider_id"`
	TreatmentPriceID uuid.UUID `json:"treatment_price_id"`
	AppointmentDate  time.Time `json:"appointment_date"`
	SpecialRequests  string    `json:"special_requests,omitempty"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Summary is a booking joined with display fields for list views.
type Summary struct {
	Booking
	PatientName   string `json:"patient_name"`
	ProviderName  string `json:"provider_name"`
	TreatmentName string `json:"treatment_name"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

// Appointment dates must fall inside [now+24h, now+1y] at creation time.
const (
	MinAppointmentLead   = 24 * time.Hour
	MaxAppointmentWindow = 365 * 24 * time.Hour
)

// AppointmentDateValid checks the booking window against now.
func AppointmentDateValid(date, now time.Time) bool {
	return !date.Before(now.Add(MinAppointmentLead)) && !date.After(now.Add(MaxAppointmentWindow))
}

// transition is one row of the status transition table.
type transition struct {
	from Status
	to   Status
}

// transitionActors maps each allowed transition to the check deciding
// whether the requester may trigger it for the given booking.
var transitionActors = map[transition]func(b *Booking, req identity.Identity) bool{
	{StatusPending, StatusConfirmed}: func(b *Booking, req identity.Identity) bool {
		// Only the payment-verified system actor confirms.
		return req.IsSystem()
	},
	{StatusPending, StatusCancelled}:   ownerProviderOrAdmin,
	{StatusConfirmed, StatusCompleted}: providerOrAdmin,
	{StatusConfirmed, StatusCancelled}: ownerProviderOrAdmin,
}

func ownerProviderOrAdmin(b *Booking, req identity.Identity) bool {
	return isOwner(b, req) || isOwningProvider(b, req) || req.IsAdmin()
}

func providerOrAdmin(b *Booking, req identity.Identity) bool {
	return isOwningProvider(b, req) || req.IsAdmin()
}

func isOwner(b *Booking, req identity.Identity) bool {
	return req.UserID != "" && req.UserID == b.UserID.String()
}

func isOwningProvider(b *Booking, req identity.Identity) bool {
	return req.ProviderID != "" && req.ProviderID == b.ProviderID.String()
}

// TransitionAllowed reports whether the table permits from→to at all,
// regardless of actor.
func TransitionAllowed(from, to Status) bool {
	_, ok := transitionActors[transition{from, to}]
	return ok
}

// ActorMayTransition reports whether the requester may move this booking
// from its current status to the target status.
func ActorMayTransition(b *Booking, to Status, req identity.Identity) bool {
	check, ok := transitionActors[transition{b.Status, to}]
	if !ok {
		return false
	}
	return check(b, req)
}

// CanView reports whether the requester may read this booking.
func CanView(b *Booking, req identity.Identity) bool {
	return isOwner(b, req) || isOwningProvider(b, req) || req.IsAdmin() || req.IsSystem()
}
