package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/pkg/logging"
)

type reviewStore interface {
	Insert(ctx context.Context, rev *Review) error
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Review, error)
	Summary(ctx context.Context, providerID uuid.UUID) (*ProviderSummary, error)
	HasCompletedBooking(ctx context.Context, userID, providerID uuid.UUID) (bool, error)
}

// Handler exposes provider reviews over HTTP.
type Handler struct {
	store    reviewStore
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates a reviews HTTP handler.
func NewHandler(store reviewStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create handles POST /providers/{providerID}/reviews.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(requester.UserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	verified, err := h.store.HasCompletedBooking(r.Context(), userID, providerID)
	if err != nil {
		h.logger.Error("completed booking lookup failed", "error", err, "user_id", userID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rev := &Review{
		ID:              uuid.New(),
		ProviderID:      providerID,
		UserID:          userID,
		Rating:          req.Rating,
		Comment:         req.Comment,
		VerifiedBooking: verified,
	}
	if err := h.store.Insert(r.Context(), rev); err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			http.Error(w, "provider already reviewed", http.StatusConflict)
			return
		}
		h.logger.Error("review insert failed", "error", err, "provider_id", providerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

// List handles GET /providers/{providerID}/reviews.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	reviews, err := h.store.ListByProvider(r.Context(), providerID)
	if err != nil {
		h.logger.Error("review list failed", "error", err, "provider_id", providerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if reviews == nil {
		reviews = []Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// Summary handles GET /providers/{providerID}/reviews/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	summary, err := h.store.Summary(r.Context(), providerID)
	if err != nil {
		h.logger.Error("review summary failed", "error", err, "provider_id", providerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
