package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrPriceNotFound    = errors.New("treatment price not found")
)

// Provider is a healthcare vendor listed on the marketplace.
type Provider struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Phone         string    `json:"phone,omitempty"`
	Website       string    `json:"website,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// TreatmentPrice is a provider-specific priced offering of a treatment: the
// authoritative source for a booking's charge amount and currency. Version
// is bumped on every price update; the payment gateway's idempotency key
// includes it so stale intents are never reused after a price change.
type TreatmentPrice struct {
	ID            uuid.UUID `json:"id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	TreatmentName string    `json:"treatment_name"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description,omitempty"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateProviderRequest registers a provider profile for a user account.
type CreateProviderRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=5000"`
	City          string `json:"city" validate:"required,max=100"`
	Country       string `json:"country" validate:"required,max=100"`
	Phone         string `json:"phone" validate:"max=32"`
	Website       string `json:"website" validate:"omitempty,url"`
	LicenseNumber string `json:"license_number" validate:"max=100"`
}

// UpsertPriceRequest creates or reprices a treatment offering.
type UpsertPriceRequest struct {
	TreatmentName string `json:"treatment_name" validate:"required,max=200"`
	AmountCents   int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3,alpha"`
	Description   string `json:"description" validate:"max=2000"`
}
