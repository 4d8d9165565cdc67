package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medport-health/medport-api/internal/catalog"
	"github.com/medport-health/medport-api/internal/events"
	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/internal/observability/metrics"
	"github.com/medport-health/medport-api/pkg/logging"
)

// BookingStore is the persistence surface the service needs.
type BookingStore interface {
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, bool, error)
	UpdateSpecialRequests(ctx context.Context, id uuid.UUID, text string) (*Booking, error)
	List(ctx context.Context, f ListFilter) ([]Summary, error)
}

// PriceCatalog resolves treatment prices. Satisfied by catalog.Repository.
type PriceCatalog interface {
	GetTreatmentPrice(ctx context.Context, id uuid.UUID) (*catalog.TreatmentPrice, error)
}

// OutboxWriter enqueues domain events for delivery. Satisfied by
// events.OutboxStore.
type OutboxWriter interface {
	Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error)
}

// Service owns the booking lifecycle. It is the only component that moves
// a booking to confirmed, and it does so only after verifying the capture
// against the processor and the current catalog price.
type Service struct {
	store   BookingStore
	catalog PriceCatalog
	gateway PaymentGateway
	intents IntentStore
	outbox  OutboxWriter
	metrics *metrics.PaymentMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService wires the lifecycle service.
func NewService(
	store BookingStore,
	priceCatalog PriceCatalog,
	gateway PaymentGateway,
	intents IntentStore,
	outbox OutboxWriter,
	m *metrics.PaymentMetrics,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   store,
		catalog: priceCatalog,
		gateway: gateway,
		intents: intents,
		outbox:  outbox,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("medport/bookings"),
		now:     time.Now,
	}
}

// CreateInput carries validated fields for a new booking.
type CreateInput struct {
	ProviderID       uuid.UUID
	TreatmentPriceID uuid.UUID
	AppointmentDate  time.Time
	SpecialRequests  string
}

// Create inserts a new pending booking after validating the appointment
// window and that the treatment price belongs to the chosen provider.
func (s *Service) Create(ctx context.Context, req identity.Identity, in CreateInput) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Create")
	defer span.End()

	if !AppointmentDateValid(in.AppointmentDate, s.now()) {
		return nil, fmt.Errorf("%w: appointment date must be at least 24 hours out and within one year", ErrValidation)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	price, err := s.catalog.GetTreatmentPrice(ctx, in.TreatmentPriceID)
	if err != nil {
		if errors.Is(err, catalog.ErrPriceNotFound) {
			return nil, fmt.Errorf("%w: treatment price not found", ErrValidation)
		}
		return nil, fmt.Errorf("bookings: resolve price: %w", err)
	}
	if price.ProviderID != in.ProviderID {
		return nil, fmt.Errorf("%w: treatment price does not belong to provider", ErrValidation)
	}

	b := &Booking{
		ID:               uuid.New(),
		UserID:           userID,
		ProviderID:       in.ProviderID,
		TreatmentPriceID: in.TreatmentPriceID,
		AppointmentDate:  in.AppointmentDate,
		SpecialRequests:  in.SpecialRequests,
		Status:           StatusPending,
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("booking.id", b.ID.String()))
	s.logger.Info("booking created",
		"booking_id", b.ID,
		"provider_id", b.ProviderID,
		"appointment_date", b.AppointmentDate,
	)
	return b, nil
}

// Get returns a booking visible to the requester.
func (s *Service) Get(ctx context.Context, req identity.Identity, id uuid.UUID) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(b, req) {
		return nil, ErrForbidden
	}
	return b, nil
}

// List returns bookings scoped to the requester: patients see their own,
// providers see their clinic's, admins see everything the filter allows.
func (s *Service) List(ctx context.Context, req identity.Identity, f ListFilter) ([]Summary, error) {
	if !req.IsAdmin() && !req.IsSystem() {
		if req.ProviderID != "" {
			providerID, err := uuid.Parse(req.ProviderID)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid provider id", ErrValidation)
			}
			f.ProviderID = &providerID
		} else {
			userID, err := uuid.Parse(req.UserID)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid user id", ErrValidation)
			}
			f.UserID = &userID
		}
	}
	return s.store.List(ctx, f)
}

// UpdateSpecialRequests edits the free-text notes while the booking is
// still pending. Owner only.
func (s *Service) UpdateSpecialRequests(ctx context.Context, req identity.Identity, id uuid.UUID, text string) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID.String() != req.UserID && !req.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.UpdateSpecialRequests(ctx, id, text)
}

// SetStatus applies one transition from the status table. Requesting the
// status a booking already has is a no-op success; anything outside the
// table is ErrInvalidTransition and leaves the record unchanged.
func (s *Service) SetStatus(ctx context.Context, req identity.Identity, id uuid.UUID, to Status) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.SetStatus",
		trace.WithAttributes(attribute.String("booking.target_status", string(to))))
	defer span.End()

	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == to {
		return b, nil
	}
	if !TransitionAllowed(b.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	if !ActorMayTransition(b, to, req) {
		return nil, ErrForbidden
	}

	updated, applied, err := s.store.UpdateStatusCAS(ctx, id, b.Status, to)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race; whoever won decides the outcome.
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == to {
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	s.emitStatusEvent(ctx, updated)
	s.logger.Info("booking status changed",
		"booking_id", updated.ID,
		"from", b.Status,
		"to", updated.Status,
		"actor_role", req.Role,
	)
	return updated, nil
}

// Cancel moves a booking to cancelled.
func (s *Service) Cancel(ctx context.Context, req identity.Identity, id uuid.UUID) (*Booking, error) {
	return s.SetStatus(ctx, req, id, StatusCancelled)
}

// Complete marks a confirmed booking as completed after the visit.
func (s *Service) Complete(ctx context.Context, req identity.Identity, id uuid.UUID) (*Booking, error) {
	return s.SetStatus(ctx, req, id, StatusCompleted)
}

// RequestPayment issues (or re-issues) a payment intent for a pending
// booking. Amount and currency come from the current catalog price; the
// gateway dedupes on booking id + price version so retries reuse the same
// intent and a repriced treatment gets a fresh one.
func (s *Service) RequestPayment(ctx context.Context, req identity.Identity, id uuid.UUID) (*PaymentIntent, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.RequestPayment")
	defer span.End()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID.String() != req.UserID {
		return nil, ErrForbidden
	}
	if b.Status != StatusPending {
		return nil, fmt.Errorf("%w: payment can only be requested while pending", ErrInvalidState)
	}

	price, err := s.catalog.GetTreatmentPrice(ctx, b.TreatmentPriceID)
	if err != nil {
		return nil, fmt.Errorf("bookings: resolve price: %w", err)
	}

	intent, err := s.gateway.CreateIntent(ctx, IntentRequest{
		BookingID:    b.ID,
		UserID:       b.UserID,
		AmountCents:  price.AmountCents,
		Currency:     price.Currency,
		PriceVersion: price.Version,
		Description:  price.TreatmentName,
	})
	if err != nil {
		s.metrics.ObserveIntent("error")
		return nil, err
	}

	if _, err := s.intents.SaveIntent(ctx, IntentRecord{
		BookingID:    b.ID,
		IntentID:     intent.ID,
		AmountCents:  intent.AmountCents,
		Currency:     intent.Currency,
		PriceVersion: price.Version,
		Status:       intent.Status,
	}); err != nil {
		return nil, err
	}

	s.metrics.ObserveIntent("created")
	span.SetAttributes(attribute.String("booking.id", b.ID.String()))
	s.logger.Info("payment intent issued",
		"booking_id", b.ID,
		"intent_id", intent.ID,
		"amount_cents", intent.AmountCents,
		"currency", intent.Currency,
	)
	return intent, nil
}

// ConfirmPayment verifies a capture with the processor and, on success,
// moves the booking from pending to confirmed. Confirming an
// already-confirmed booking is a no-op success so client confirm and the
// webhook can race safely. intentID may be empty, in which case the
// last-issued intent for the booking is used; a non-empty intentID must
// match that intent.
func (s *Service) ConfirmPayment(ctx context.Context, req identity.Identity, id uuid.UUID, intentID string) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.ConfirmPayment")
	defer span.End()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID.String() != req.UserID && !req.IsAdmin() && !req.IsSystem() {
		return nil, ErrForbidden
	}
	if b.Status == StatusConfirmed || b.Status == StatusCompleted {
		s.metrics.ObserveConfirmation("duplicate")
		return b, nil
	}
	if b.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: cancelled -> confirmed", ErrInvalidTransition)
	}

	rec, err := s.intents.LatestIntent(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: no payment intent for booking", ErrInvalidState)
	}
	// Only the booking's own last-issued intent is accepted: a succeeded
	// intent from another booking must never confirm this one.
	if intentID != "" && intentID != rec.IntentID {
		s.metrics.ObserveMismatch()
		s.metrics.ObserveConfirmation("mismatch")
		s.logger.Error("supplied intent does not belong to booking",
			"booking_id", b.ID,
			"intent_id", intentID,
			"issued_intent_id", rec.IntentID,
		)
		return nil, fmt.Errorf("%w: intent does not belong to booking", ErrPaymentMismatch)
	}
	intentID = rec.IntentID

	start := s.now()
	capture, err := s.gateway.VerifyCapture(ctx, intentID)
	s.metrics.ObserveVerifyLatency(s.now().Sub(start).Seconds())
	if err != nil {
		s.metrics.ObserveConfirmation("verify_error")
		return nil, err
	}
	if !capture.Succeeded {
		s.metrics.ObserveConfirmation("not_completed")
		return nil, ErrPaymentNotCompleted
	}

	price, err := s.catalog.GetTreatmentPrice(ctx, b.TreatmentPriceID)
	if err != nil {
		return nil, fmt.Errorf("bookings: resolve price: %w", err)
	}
	if capture.AmountCents != price.AmountCents || capture.Currency != price.Currency {
		s.metrics.ObserveMismatch()
		s.metrics.ObserveConfirmation("mismatch")
		s.logger.Error("payment capture does not match booking price",
			"booking_id", b.ID,
			"intent_id", intentID,
			"captured_amount_cents", capture.AmountCents,
			"captured_currency", capture.Currency,
			"expected_amount_cents", price.AmountCents,
			"expected_currency", price.Currency,
		)
		return nil, ErrPaymentMismatch
	}

	updated, applied, err := s.store.UpdateStatusCAS(ctx, b.ID, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !applied {
		current, err := s.store.Get(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == StatusConfirmed || current.Status == StatusCompleted {
			s.metrics.ObserveConfirmation("duplicate")
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s -> confirmed", ErrInvalidTransition, current.Status)
	}

	if err := s.intents.MarkIntentStatus(ctx, intentID, "succeeded"); err != nil {
		s.logger.Error("failed to record intent status", "error", err, "intent_id", intentID)
	}
	if s.outbox != nil {
		if _, err := s.outbox.Insert(ctx, events.TypeBookingConfirmed, events.BookingConfirmedV1{
			BookingID:   updated.ID,
			UserID:      updated.UserID,
			ProviderID:  updated.ProviderID,
			IntentID:    intentID,
			AmountCents: capture.AmountCents,
			Currency:    capture.Currency,
			ConfirmedAt: updated.UpdatedAt,
		}); err != nil {
			s.logger.Error("failed to enqueue confirmation event", "error", err, "booking_id", updated.ID)
		}
	}

	s.metrics.ObserveConfirmation("confirmed")
	span.SetAttributes(attribute.String("booking.id", updated.ID.String()))
	s.logger.Info("booking confirmed",
		"booking_id", updated.ID,
		"intent_id", intentID,
		"amount_cents", capture.AmountCents,
		"currency", capture.Currency,
	)
	return updated, nil
}

func (s *Service) emitStatusEvent(ctx context.Context, b *Booking) {
	if s.outbox == nil {
		return
	}
	var eventType string
	switch b.Status {
	case StatusCancelled:
		eventType = events.TypeBookingCancelled
	case StatusCompleted:
		eventType = events.TypeBookingCompleted
	default:
		return
	}
	if _, err := s.outbox.Insert(ctx, eventType, events.BookingStatusChangedV1{
		BookingID:  b.ID,
		UserID:     b.UserID,
		ProviderID: b.ProviderID,
		Status:     string(b.Status),
		ChangedAt:  b.UpdatedAt,
	}); err != nil {
		s.logger.Error("failed to enqueue status event", "error", err, "booking_id", b.ID)
	}
}
