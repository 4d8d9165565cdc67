package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/medport-health/medport-api/internal/bookings"
	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/pkg/logging"
)

const maxWebhookBody = 64 * 1024

// processedTracker deduplicates external event deliveries.
type processedTracker interface {
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, source string) error
}

// intentStatusMarker records terminal intent statuses.
type intentStatusMarker interface {
	MarkIntentStatus(ctx context.Context, intentID, status string) error
}

// StripeWebhookHandler processes payment_intent events from Stripe.
// Succeeded intents drive confirmation through the booking lifecycle
// service, exactly like a client-triggered confirm, so the two paths can
// race safely.
type StripeWebhookHandler struct {
	webhookSecret string
	bookings      *bookings.Service
	processed     processedTracker
	intents       intentStatusMarker
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates the webhook handler.
func NewStripeWebhookHandler(
	webhookSecret string,
	bookingService *bookings.Service,
	processed processedTracker,
	intents intentStatusMarker,
	logger *logging.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		bookings:      bookingService,
		processed:     processed,
		intents:       intents,
		logger:        logger,
	}
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := h.parseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook signature verification failed", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	if seen, err := h.processed.AlreadyProcessed(r.Context(), evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if seen {
		w.WriteHeader(http.StatusOK)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		h.logger.Error("failed to decode payment intent from event", "error", err, "event_id", evt.ID)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if evt.Type == "payment_intent.payment_failed" {
		if err := h.intents.MarkIntentStatus(r.Context(), pi.ID, "failed"); err != nil {
			h.logger.Error("failed to record intent failure", "error", err, "intent_id", pi.ID)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		h.markAndAck(w, r, evt.ID)
		return
	}

	bookingID, err := uuid.Parse(pi.Metadata["booking_id"])
	if err != nil {
		h.logger.Warn("stripe webhook missing booking metadata", "event_id", evt.ID, "intent_id", pi.ID)
		// Acknowledge: retrying cannot fix missing metadata.
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.bookings.ConfirmPayment(r.Context(), identity.System(), bookingID, pi.ID); err != nil {
		switch {
		case errors.Is(err, bookings.ErrPaymentMismatch),
			errors.Is(err, bookings.ErrInvalidTransition),
			errors.Is(err, bookings.ErrNotFound):
			// Not resolvable by redelivery. The mismatch itself is already
			// logged by the lifecycle service.
			h.markAndAck(w, r, evt.ID)
			return
		default:
			h.logger.Error("webhook confirmation failed", "error", err, "booking_id", bookingID, "event_id", evt.ID)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
	}

	h.markAndAck(w, r, evt.ID)
}

func (h *StripeWebhookHandler) parseEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if h.webhookSecret == "" {
		// Signature bypass for local development only.
		var evt stripe.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			return stripe.Event{}, err
		}
		return evt, nil
	}
	// Stripe sends events at the account's pinned API version, which rarely
	// matches the SDK's; only the signature matters here.
	return webhook.ConstructEventWithOptions(payload, sigHeader, h.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func (h *StripeWebhookHandler) markAndAck(w http.ResponseWriter, r *http.Request, eventID string) {
	if err := h.processed.MarkProcessed(r.Context(), eventID, "stripe"); err != nil {
		h.logger.Error("failed to record processed event", "error", err, "event_id", eventID)
	}
	w.WriteHeader(http.StatusOK)
}
