package bookingflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bookings", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var params CreateBookingParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "prov-1", params.ProviderID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Booking{ID: "b-1", Status: "pending"})
	}))
	defer srv.Close()

	client := New(srv.URL, "tok")
	b, err := client.CreateBooking(context.Background(), CreateBookingParams{
		ProviderID:       "prov-1",
		TreatmentPriceID: "price-1",
		AppointmentDate:  time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, "pending", b.Status)
}

func TestConfirmPaymentServerIsAuthoritative(t *testing.T) {
	// The server says payment has not completed; the client surfaces that
	// instead of trusting any widget-side success signal.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/confirm-payment/b-1", r.URL.Path)
		http.Error(w, "payment has not completed", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := New(srv.URL, "tok")
	_, err := client.ConfirmPayment(context.Background(), "b-1", "pi_1")
	require.Error(t, err)
	assert.True(t, IsPaymentIncomplete(err))
}

func TestConfirmPaymentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pi_1", body["intent_id"])
		_ = json.NewEncoder(w).Encode(Booking{ID: "b-1", Status: "confirmed"})
	}))
	defer srv.Close()

	client := New(srv.URL, "tok")
	b, err := client.ConfirmPayment(context.Background(), "b-1", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", b.Status)
}

func TestRequestPaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/create-payment-intent", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "b-1", body["booking_id"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(PaymentIntent{
			ID:           "pi_1",
			ClientSecret: "pi_1_secret",
			AmountCents:  125000,
			Currency:     "USD",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "tok")
	intent, err := client.RequestPaymentIntent(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(125000), intent.AmountCents)
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not authorized for this booking", http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(srv.URL, "tok")
	_, err := client.GetBooking(context.Background(), "b-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "not authorized")
	assert.False(t, IsPaymentIncomplete(err))
}

func TestCancelBooking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/bookings/b-1/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Booking{ID: "b-1", Status: "cancelled"})
	}))
	defer srv.Close()

	client := New(srv.URL, "tok")
	b, err := client.CancelBooking(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", b.Status)
}
