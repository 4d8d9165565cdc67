package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/pkg/logging"
)

// Handler exposes booking operations over HTTP. All routes require an
// authenticated identity in the request context.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates a bookings HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateBookingRequest is the POST /bookings payload. No price fields: the
// server derives amount and currency from the treatment price.
type CreateBookingRequest struct {
	ProviderID       string    `json:"provider_id" validate:"required,uuid"`
	TreatmentPriceID string    `json:"treatment_price_id" validate:"required,uuid"`
	AppointmentDate  time.Time `json:"appointment_date" validate:"required"`
	SpecialRequests  string    `json:"special_requests" validate:"max=2000"`
}

// UpdateBookingRequest is the PUT /bookings/{bookingID} payload.
type UpdateBookingRequest struct {
	SpecialRequests string `json:"special_requests" validate:"max=2000"`
}

// StatusRequest is the PUT /bookings/{bookingID}/status payload.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled completed"`
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	providerID, _ := uuid.Parse(req.ProviderID)
	priceID, _ := uuid.Parse(req.TreatmentPriceID)

	booking, err := h.service.Create(r.Context(), requester, CreateInput{
		ProviderID:       providerID,
		TreatmentPriceID: priceID,
		AppointmentDate:  req.AppointmentDate,
		SpecialRequests:  req.SpecialRequests,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("booking create failed", "error", err, "user_id", requester.UserID)
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// Get handles GET /bookings/{bookingID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	booking, err := h.service.Get(r.Context(), requester, id)
	if err != nil {
		h.writeServiceError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// List handles GET /bookings. Optional query params: status, date
// (YYYY-MM-DD), search.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		http.Error(w, "unknown status filter", http.StatusBadRequest)
		return
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date filter, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Date = &date
	}
	bookings, err := h.service.List(r.Context(), requester, filter)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("booking list failed", "error", err, "user_id", requester.UserID)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	if bookings == nil {
		bookings = []Summary{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// Update handles PUT /bookings/{bookingID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	var req UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	booking, err := h.service.UpdateSpecialRequests(r.Context(), requester, id, req.SpecialRequests)
	if err != nil {
		h.writeServiceError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// SetStatus handles PUT /bookings/{bookingID}/status. Confirmation is not
// reachable here; it only happens through payment verification.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	booking, err := h.service.SetStatus(r.Context(), requester, id, Status(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, bookingID uuid.UUID) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "not authorized for this booking", http.StatusForbidden)
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("booking operation failed", "error", err, "booking_id", bookingID)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
