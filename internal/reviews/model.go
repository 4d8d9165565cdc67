package reviews

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a review does not exist.
	ErrNotFound = errors.New("review not found")
	// ErrAlreadyReviewed is returned when a user reviews the same provider
	// twice.
	ErrAlreadyReviewed = errors.New("provider already reviewed")
)

// Review is a patient's rating of a provider. VerifiedBooking is set by the
// server when the reviewer has a completed booking with the provider; it is
// never accepted from input.
type Review struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	UserID          uuid.UUID `json:"user_id"`
	Rating          int       `json:"rating"`
	Comment         string    `json:"comment,omitempty"`
	VerifiedBooking bool      `json:"verified_booking"`
	ReviewerName    string    `json:"reviewer_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateReviewRequest is the POST payload.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=4000"`
}

// ProviderSummary aggregates a provider's reviews.
type ProviderSummary struct {
	ProviderID    uuid.UUID `json:"provider_id"`
	ReviewCount   int       `json:"review_count"`
	AverageRating float64   `json:"average_rating"`
}
