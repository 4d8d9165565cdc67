package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/pkg/logging"
)

// Handler exposes the provider/treatment catalog over HTTP.
type Handler struct {
	repo     *Repository
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates a catalog HTTP handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// ListProviders handles GET /providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.repo.ListProviders(r.Context(), r.URL.Query().Get("country"), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("provider list failed", "error", err)
		http.Error(w, "failed to list providers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// GetProvider handles GET /providers/{providerID}.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	provider, err := h.repo.GetProvider(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		h.logger.Error("provider lookup failed", "error", err, "provider_id", id)
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

// CreateProvider handles POST /providers.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req CreateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(requester.UserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	provider, err := h.repo.CreateProvider(r.Context(), userID, &req)
	if err != nil {
		h.logger.Error("provider create failed", "error", err, "user_id", requester.UserID)
		http.Error(w, "failed to create provider", http.StatusInternalServerError)
		return
	}
	h.logger.Info("provider created", "provider_id", provider.ID, "user_id", requester.UserID)
	writeJSON(w, http.StatusCreated, provider)
}

// ListPrices handles GET /providers/{providerID}/prices.
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	prices, err := h.repo.ListPrices(r.Context(), id)
	if err != nil {
		h.logger.Error("price list failed", "error", err, "provider_id", id)
		http.Error(w, "failed to list prices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// CreatePrice handles POST /providers/{providerID}/prices.
func (h *Handler) CreatePrice(w http.ResponseWriter, r *http.Request) {
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
	if requester.ProviderID != providerID.String() && !requester.IsAdmin() {
		http.Error(w, "not authorized for this provider", http.StatusForbidden)
		return
	}
	var req UpsertPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := h.repo.CreatePrice(r.Context(), providerID, &req)
	if err != nil {
		h.logger.Error("price create failed", "error", err, "provider_id", providerID)
		http.Error(w, "failed to create price", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, price)
}

// UpdatePrice handles PUT /providers/{providerID}/prices/{priceID}.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
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
	priceID, err := uuid.Parse(chi.URLParam(r, "priceID"))
	if err != nil {
		http.Error(w, "invalid price id", http.StatusBadRequest)
		return
	}
	if requester.ProviderID != providerID.String() && !requester.IsAdmin() {
		http.Error(w, "not authorized for this provider", http.StatusForbidden)
		return
	}
	var req UpsertPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := h.repo.UpdatePrice(r.Context(), priceID, &req)
	if err != nil {
		if errors.Is(err, ErrPriceNotFound) {
			http.Error(w, "price not found", http.StatusNotFound)
			return
		}
		h.logger.Error("price update failed", "error", err, "price_id", priceID)
		http.Error(w, "failed to update price", http.StatusInternalServerError)
		return
	}
	h.logger.Info("treatment price updated", "price_id", price.ID, "version", price.Version)
	writeJSON(w, http.StatusOK, price)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
