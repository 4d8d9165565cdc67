package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medport-health/medport-api/internal/bookings"
	"github.com/medport-health/medport-api/pkg/logging"
)

var stripeTracer = otel.Tracer("medport.internal.payments.stripe")

var (
	// ErrGateway wraps transient processor failures. Safe to retry.
	ErrGateway = errors.New("payment gateway unavailable")
	// ErrDeclined is returned when the processor rejects the charge.
	ErrDeclined = errors.New("payment declined")
)

// StripeGateway implements bookings.PaymentGateway against the Stripe API.
// It never retries on its own; callers decide the retry policy.
type StripeGateway struct {
	client  *client.API
	timeout time.Duration
	logger  *logging.Logger
}

// NewStripeGateway creates a gateway using the given secret key. baseURL
// overrides the Stripe API endpoint for testing; empty means production.
func NewStripeGateway(secretKey, baseURL string, timeout time.Duration, logger *logging.Logger) *StripeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:    &http.Client{Timeout: timeout},
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
		// Retries belong to the caller, not the transport.
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(baseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	sc := client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeGateway{client: sc, timeout: timeout, logger: logger}
}

// CreateIntent creates (or, on retry, returns) a payment intent for a
// booking. The idempotency key is derived from the booking id and the
// treatment price version: retries against the same price reuse the intent,
// a repriced treatment gets a new one.
func (g *StripeGateway) CreateIntent(ctx context.Context, req bookings.IntentRequest) (*bookings.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("medport.booking_id", req.BookingID.String()),
		attribute.Int64("medport.amount_cents", req.AmountCents),
	)

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("booking_id", req.BookingID.String())
	params.AddMetadata("user_id", req.UserID.String())
	params.AddMetadata("price_version", fmt.Sprintf("%d", req.PriceVersion))
	params.SetIdempotencyKey(IdempotencyKey(req))

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError("create payment intent", err)
	}

	return &bookings.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       string(pi.Status),
	}, nil
}

// VerifyCapture asks Stripe for the intent's current state. The processor's
// answer is authoritative; nothing the client sends is trusted.
func (g *StripeGateway) VerifyCapture(ctx context.Context, intentID string) (*bookings.CaptureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx, span := stripeTracer.Start(ctx, "stripe.verify_capture")
	defer span.End()
	span.SetAttributes(attribute.String("medport.intent_id", intentID))

	pi, err := g.client.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, mapStripeError("get payment intent", err)
	}

	succeeded := pi.Status == stripe.PaymentIntentStatusSucceeded
	amount := pi.Amount
	if succeeded && pi.AmountReceived > 0 {
		amount = pi.AmountReceived
	}
	return &bookings.CaptureResult{
		Succeeded:   succeeded,
		AmountCents: amount,
		Currency:    strings.ToUpper(string(pi.Currency)),
	}, nil
}

// IdempotencyKey builds the processor idempotency key for an intent request.
func IdempotencyKey(req bookings.IntentRequest) string {
	return fmt.Sprintf("booking:%s:v%d", req.BookingID, req.PriceVersion)
}

func mapStripeError(action string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard {
			return fmt.Errorf("payments: %s: %w: %s", action, ErrDeclined, stripeErr.Code)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("payments: %s: %w: %s", action, ErrGateway, stripeErr.Msg)
		}
		return fmt.Errorf("payments: %s: stripe: %s", action, stripeErr.Msg)
	}
	return fmt.Errorf("payments: %s: %w: %v", action, ErrGateway, err)
}
