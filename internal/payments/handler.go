package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medport-health/medport-api/internal/bookings"
	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/pkg/logging"
)

// Handler exposes the payment flow over HTTP: intent creation for the
// payment widget and server-verified confirmation.
type Handler struct {
	bookings *bookings.Service
	velocity *VelocityChecker
	logger   *logging.Logger
}

// NewHandler creates a payments HTTP handler.
func NewHandler(bookingService *bookings.Service, velocity *VelocityChecker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		bookings: bookingService,
		velocity: velocity,
		logger:   logger,
	}
}

// ConfirmRequest is the optional POST confirm payload. When intent_id is
// omitted the last-issued intent for the booking is verified.
type ConfirmRequest struct {
	IntentID string `json:"intent_id"`
}

// CreateIntentRequest is the POST /payments/create-payment-intent payload.
type CreateIntentRequest struct {
	BookingID string `json:"booking_id"`
}

// CreateIntent handles POST /payments/bookings/{bookingID}/intent. The
// response carries the client secret exactly once; it is never stored.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	h.issueIntent(w, r, requester, bookingID)
}

// CreatePaymentIntent handles POST /payments/create-payment-intent with the
// booking id in the payload.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	h.issueIntent(w, r, requester, bookingID)
}

func (h *Handler) issueIntent(w http.ResponseWriter, r *http.Request, requester identity.Identity, bookingID uuid.UUID) {
	if h.velocity != nil {
		result, err := h.velocity.CheckPaymentAttempt(r.Context(), requester.UserID)
		if err == nil && !result.Allowed {
			http.Error(w, result.Message, http.StatusTooManyRequests)
			return
		}
	}

	intent, err := h.bookings.RequestPayment(r.Context(), requester, bookingID)
	if err != nil {
		h.writeError(w, err, bookingID)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// Confirm handles POST /payments/bookings/{bookingID}/confirm. The server
// verifies the capture with the processor before any status change; nothing
// in the request body is trusted.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	var req ConfirmRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
	}

	booking, err := h.bookings.ConfirmPayment(r.Context(), requester, bookingID, req.IntentID)
	if err != nil {
		h.writeError(w, err, bookingID)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, bookingID uuid.UUID) {
	switch {
	case errors.Is(err, bookings.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, bookings.ErrForbidden):
		http.Error(w, "not authorized for this booking", http.StatusForbidden)
	case errors.Is(err, bookings.ErrInvalidState), errors.Is(err, bookings.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, bookings.ErrPaymentNotCompleted):
		http.Error(w, "payment has not completed", http.StatusPaymentRequired)
	case errors.Is(err, bookings.ErrPaymentMismatch):
		http.Error(w, "payment does not match booking", http.StatusConflict)
	case errors.Is(err, ErrDeclined):
		http.Error(w, "payment declined", http.StatusPaymentRequired)
	case errors.Is(err, ErrGateway):
		h.logger.Error("payment gateway error", "error", err, "booking_id", bookingID)
		http.Error(w, "payment service unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("payment operation failed", "error", err, "booking_id", bookingID)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
