package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medport-health/medport-api/internal/events"
	"github.com/medport-health/medport-api/pkg/logging"
)

// BookingContacts carries everything needed to notify both sides of a
// booking.
type BookingContacts struct {
	PatientName     string
	PatientEmail    string
	ProviderName    string
	ProviderEmail   string
	TreatmentName   string
	AppointmentDate time.Time
}

// ContactResolver looks up the people behind a booking.
type ContactResolver interface {
	BookingContacts(ctx context.Context, bookingID uuid.UUID) (*BookingContacts, error)
}

// Service sends booking lifecycle emails.
type Service struct {
	email    EmailSender
	contacts ContactResolver
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, contacts ContactResolver, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:    email,
		contacts: contacts,
		logger:   logger,
	}
}

// NotifyBookingConfirmed emails the patient and the provider after a
// verified payment confirms a booking.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, evt events.BookingConfirmedV1) error {
	if s.email == nil {
		return nil
	}
	contacts, err := s.contacts.BookingContacts(ctx, evt.BookingID)
	if err != nil {
		return fmt.Errorf("notify: resolve booking contacts: %w", err)
	}

	amountStr := fmt.Sprintf("%.2f %s", float64(evt.AmountCents)/100, evt.Currency)
	when := contacts.AppointmentDate.Format("Monday, January 2, 2006 at 15:04")

	var errs []error
	if contacts.PatientEmail != "" {
		msg := EmailMessage{
			To:      contacts.PatientEmail,
			ToName:  contacts.PatientName,
			Subject: fmt.Sprintf("Booking confirmed: %s", contacts.TreatmentName),
			Body: fmt.Sprintf(`Hi %s,

Your booking is confirmed!

Treatment: %s
Clinic: %s
Date: %s
Paid: %s

The clinic will contact you with preparation details.

— MedPort`, contacts.PatientName, contacts.TreatmentName, contacts.ProviderName, when, amountStr),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("patient confirmation email failed", "error", err, "booking_id", evt.BookingID)
			errs = append(errs, err)
		}
	}
	if contacts.ProviderEmail != "" {
		msg := EmailMessage{
			To:      contacts.ProviderEmail,
			ToName:  contacts.ProviderName,
			Subject: fmt.Sprintf("New confirmed booking: %s", contacts.TreatmentName),
			Body: fmt.Sprintf(`%s has a confirmed booking.

Patient: %s
Treatment: %s
Date: %s
Paid: %s

— MedPort`, contacts.ProviderName, contacts.PatientName, contacts.TreatmentName, when, amountStr),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("provider confirmation email failed", "error", err, "booking_id", evt.BookingID)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

// NotifyBookingStatusChanged emails the patient about cancellations.
func (s *Service) NotifyBookingStatusChanged(ctx context.Context, evt events.BookingStatusChangedV1) error {
	if s.email == nil || evt.Status != "cancelled" {
		return nil
	}
	contacts, err := s.contacts.BookingContacts(ctx, evt.BookingID)
	if err != nil {
		return fmt.Errorf("notify: resolve booking contacts: %w", err)
	}
	if contacts.PatientEmail == "" {
		return nil
	}
	msg := EmailMessage{
		To:      contacts.PatientEmail,
		ToName:  contacts.PatientName,
		Subject: fmt.Sprintf("Booking cancelled: %s", contacts.TreatmentName),
		Body: fmt.Sprintf(`Hi %s,

Your booking for %s at %s on %s has been cancelled.

— MedPort`, contacts.PatientName, contacts.TreatmentName, contacts.ProviderName,
			contacts.AppointmentDate.Format("Monday, January 2, 2006 at 15:04")),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: cancellation email: %w", err)
	}
	return nil
}

// PgContactResolver resolves booking contacts from the relational database.
type PgContactResolver struct {
	pool *pgxpool.Pool
}

// NewPgContactResolver creates a resolver backed by pgx pool.
func NewPgContactResolver(pool *pgxpool.Pool) *PgContactResolver {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &PgContactResolver{pool: pool}
}

// BookingContacts joins the booking with its patient, provider and
// treatment.
func (r *PgContactResolver) BookingContacts(ctx context.Context, bookingID uuid.UUID) (*BookingContacts, error) {
	query := `
		SELECT u.full_name, u.email, p.name, pu.email, tp.treatment_name, b.appointment_date
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN providers p ON p.id = b.provider_id
		JOIN users pu ON pu.id = p.user_id
		JOIN treatment_prices tp ON tp.id = b.treatment_price_id
		WHERE b.id = $1
	`
	var c BookingContacts
	if err := r.pool.QueryRow(ctx, query, bookingID).Scan(
		&c.PatientName, &c.PatientEmail, &c.ProviderName, &c.ProviderEmail,
		&c.TreatmentName, &c.AppointmentDate,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notify: booking %s not found", bookingID)
		}
		return nil, fmt.Errorf("notify: contacts lookup: %w", err)
	}
	return &c, nil
}
