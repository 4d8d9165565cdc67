// Package bookingflow is a typed client for the booking and payment API.
// The server is authoritative: callers render whatever state comes back and
// never decide locally that a payment succeeded.
package bookingflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the booking API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the given API base URL and bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Booking mirrors the server's booking resource.
type Booking struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ProviderID       string    `json:"provider_id"`
	TreatmentPriceID string    `json:"treatment_price_id"`
	AppointmentDate  time.Time `json:"appointment_date"`
	SpecialRequests  string    `json:"special_requests,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PaymentIntent mirrors the server's intent response. ClientSecret is handed
// to the payment widget and must not be stored.
type PaymentIntent struct {
	ID           string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// CreateBookingParams is the input for CreateBooking.
type CreateBookingParams struct {
	ProviderID       string    `json:"provider_id"`
	TreatmentPriceID string    `json:"treatment_price_id"`
	AppointmentDate  time.Time `json:"appointment_date"`
	SpecialRequests  string    `json:"special_requests,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bookingflow: server returned %d: %s", e.StatusCode, e.Message)
}

// IsPaymentIncomplete reports whether err means the processor has not
// finished the charge yet. The caller may retry confirmation.
func IsPaymentIncomplete(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusPaymentRequired
}

// CreateBooking creates a pending booking.
func (c *Client) CreateBooking(ctx context.Context, params CreateBookingParams) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", params, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBooking fetches the current server-side state of a booking.
func (c *Client) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/"+bookingID, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// RequestPaymentIntent asks the server for a payment intent. The amount in
// the response is the server's price; nothing client-side feeds into it.
func (c *Client) RequestPaymentIntent(ctx context.Context, bookingID string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payments/create-payment-intent", map[string]string{"booking_id": bookingID}, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// ConfirmPayment asks the server to verify the capture and confirm the
// booking. The returned booking status is the source of truth: a widget
// that reported success locally still shows pending until the server
// verified the charge.
func (c *Client) ConfirmPayment(ctx context.Context, bookingID, intentID string) (*Booking, error) {
	body := map[string]string{}
	if intentID != "" {
		body["intent_id"] = intentID
	}
	var b Booking
	if err := c.do(ctx, http.MethodPost, "/payments/confirm-payment/"+bookingID, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelBooking cancels a booking.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodPut, "/bookings/"+bookingID+"/status", map[string]string{"status": "cancelled"}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bookingflow: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("bookingflow: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bookingflow: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bookingflow: decode response: %w", err)
	}
	return nil
}
