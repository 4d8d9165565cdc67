package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medport-health/medport-api/internal/http/middleware"
	"github.com/medport-health/medport-api/internal/identity"
	"github.com/medport-health/medport-api/pkg/logging"
)

type accountStore interface {
	Insert(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ProviderIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// Handler exposes registration, login and the current-account endpoint.
type Handler struct {
	store     accountStore
	jwtSecret string
	tokenTTL  time.Duration
	validate  *validator.Validate
	logger    *logging.Logger
	now       func() time.Time
}

// NewHandler creates a users HTTP handler.
func NewHandler(store accountStore, jwtSecret string, tokenTTL time.Duration, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Handler{
		store:     store,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("password hash failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	u := &User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         string(identity.RolePatient),
		PasswordHash: string(hash),
	}
	if err := h.store.Insert(r.Context(), u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("user insert failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user registered", "user_id", u.ID)
	h.writeAuthResponse(w, r, http.StatusCreated, u)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.store.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
			return
		}
		h.logger.Error("user lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	h.writeAuthResponse(w, r, http.StatusOK, u)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	requester, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(requester.UserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	u, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error("user lookup failed", "error", err, "user_id", requester.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) writeAuthResponse(w http.ResponseWriter, r *http.Request, status int, u *User) {
	providerID, err := h.store.ProviderIDForUser(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("provider lookup failed", "error", err, "user_id", u.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	expiresAt := h.now().Add(h.tokenTTL)
	claims := middleware.Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(h.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if providerID != uuid.Nil {
		claims.ProviderID = providerID.String()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.logger.Error("token signing failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      u,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
