package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medport-health/medport-api/internal/bookings"
	"github.com/medport-health/medport-api/internal/catalog"
	"github.com/medport-health/medport-api/internal/identity"
)

type memBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*bookings.Booking
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{bookings: map[uuid.UUID]*bookings.Booking{}}
}

func (m *memBookingStore) Insert(_ context.Context, b *bookings.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memBookingStore) Get(_ context.Context, id uuid.UUID) (*bookings.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookingStore) UpdateStatusCAS(_ context.Context, id uuid.UUID, from, to bookings.Status) (*bookings.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return nil, false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, true, nil
}

func (m *memBookingStore) UpdateSpecialRequests(_ context.Context, id uuid.UUID, text string) (*bookings.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != bookings.StatusPending {
		return nil, bookings.ErrInvalidState
	}
	b.SpecialRequests = text
	cp := *b
	return &cp, nil
}

func (m *memBookingStore) List(_ context.Context, _ bookings.ListFilter) ([]bookings.Summary, error) {
	return nil, nil
}

type stubPriceCatalog struct {
	prices map[uuid.UUID]*catalog.TreatmentPrice
}

func (c *stubPriceCatalog) GetTreatmentPrice(_ context.Context, id uuid.UUID) (*catalog.TreatmentPrice, error) {
	p, ok := c.prices[id]
	if !ok {
		return nil, catalog.ErrPriceNotFound
	}
	cp := *p
	return &cp, nil
}

type stubPaymentGateway struct {
	intent  *bookings.PaymentIntent
	capture *bookings.CaptureResult
	err     error
}

func (g *stubPaymentGateway) CreateIntent(context.Context, bookings.IntentRequest) (*bookings.PaymentIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.intent, nil
}

func (g *stubPaymentGateway) VerifyCapture(context.Context, string) (*bookings.CaptureResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.capture, nil
}

type memIntentStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*bookings.IntentRecord
	marked  map[string]string
}

func newMemIntentStore() *memIntentStore {
	return &memIntentStore{records: map[uuid.UUID]*bookings.IntentRecord{}, marked: map[string]string{}}
}

func (s *memIntentStore) SaveIntent(_ context.Context, rec bookings.IntentRecord) (*bookings.IntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.records[rec.BookingID] = &cp
	return &cp, nil
}

func (s *memIntentStore) LatestIntent(_ context.Context, bookingID uuid.UUID) (*bookings.IntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memIntentStore) MarkIntentStatus(_ context.Context, intentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[intentID] = status
	return nil
}

type paymentFixture struct {
	svc     *bookings.Service
	store   *memBookingStore
	gateway *stubPaymentGateway
	intents *memIntentStore
	booking *bookings.Booking
	owner   identity.Identity
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	priceID := uuid.New()
	providerID := uuid.New()
	userID := uuid.New()

	store := newMemBookingStore()
	gateway := &stubPaymentGateway{
		intent:  &bookings.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", AmountCents: 125000, Currency: "USD", Status: "requires_payment_method"},
		capture: &bookings.CaptureResult{Succeeded: true, AmountCents: 125000, Currency: "USD"},
	}
	intents := newMemIntentStore()
	svc := bookings.NewService(store, &stubPriceCatalog{prices: map[uuid.UUID]*catalog.TreatmentPrice{
		priceID: {ID: priceID, ProviderID: providerID, TreatmentName: "Dental Implant", AmountCents: 125000, Currency: "USD", Version: 1},
	}}, gateway, intents, nil, nil, nil)

	booking := &bookings.Booking{
		ID:               uuid.New(),
		UserID:           userID,
		ProviderID:       providerID,
		TreatmentPriceID: priceID,
		AppointmentDate:  time.Now().Add(48 * time.Hour),
		Status:           bookings.StatusPending,
	}
	require.NoError(t, store.Insert(context.Background(), booking))

	return &paymentFixture{
		svc:     svc,
		store:   store,
		gateway: gateway,
		intents: intents,
		booking: booking,
		owner:   identity.Identity{UserID: userID.String(), Role: identity.RolePatient},
	}
}

func (f *paymentFixture) issueIntent(t *testing.T) {
	t.Helper()
	_, err := f.svc.RequestPayment(context.Background(), f.owner, f.booking.ID)
	require.NoError(t, err)
}

func newPaymentRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/payments/create-payment-intent", h.CreatePaymentIntent)
	r.Post("/payments/confirm-payment/{bookingID}", h.Confirm)
	r.Post("/payments/bookings/{bookingID}/intent", h.CreateIntent)
	r.Post("/payments/bookings/{bookingID}/confirm", h.Confirm)
	return r
}

func doPayment(t *testing.T, router http.Handler, id identity.Identity, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if id.UserID != "" {
		req = req.WithContext(identity.WithIdentity(context.Background(), id))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateIntentEndpoint(t *testing.T) {
	f := newPaymentFixture(t)
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/bookings/"+f.booking.ID.String()+"/intent", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var intent bookings.PaymentIntent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&intent))
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)
}

func TestCreateIntentEndpointAuthz(t *testing.T) {
	f := newPaymentFixture(t)
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))
	path := "/payments/bookings/" + f.booking.ID.String() + "/intent"

	rec := doPayment(t, router, identity.Identity{}, path, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stranger := identity.Identity{UserID: uuid.NewString(), Role: identity.RolePatient}
	rec = doPayment(t, router, stranger, path, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doPayment(t, router, f.owner, "/payments/bookings/"+uuid.NewString()+"/intent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateIntentEndpointNonPending(t *testing.T) {
	f := newPaymentFixture(t)
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))
	f.store.bookings[f.booking.ID].Status = bookings.StatusConfirmed

	rec := doPayment(t, router, f.owner, "/payments/bookings/"+f.booking.ID.String()+"/intent", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateIntentEndpointGatewayDown(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.err = ErrGateway
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/bookings/"+f.booking.ID.String()+"/intent", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCreatePaymentIntentEndpoint(t *testing.T) {
	f := newPaymentFixture(t)
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/create-payment-intent", CreateIntentRequest{BookingID: f.booking.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code)

	var intent bookings.PaymentIntent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&intent))
	assert.Equal(t, "pi_1", intent.ID)

	rec = doPayment(t, router, f.owner, "/payments/create-payment-intent", CreateIntentRequest{BookingID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	f := newPaymentFixture(t)
	f.issueIntent(t)
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/confirm-payment/"+f.booking.ID.String(), ConfirmRequest{IntentID: "pi_1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var b bookings.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.Equal(t, bookings.StatusConfirmed, b.Status)
}

func TestConfirmEndpointForeignIntent(t *testing.T) {
	f := newPaymentFixture(t)
	f.issueIntent(t)
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/confirm-payment/"+f.booking.ID.String(), ConfirmRequest{IntentID: "pi_other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	got, err := f.store.Get(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusPending, got.Status)
}

func TestConfirmEndpointPaymentNotCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	f.issueIntent(t)
	f.gateway.capture = &bookings.CaptureResult{Succeeded: false}
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/bookings/"+f.booking.ID.String()+"/confirm", ConfirmRequest{IntentID: "pi_1"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestConfirmEndpointMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	f.issueIntent(t)
	f.gateway.capture = &bookings.CaptureResult{Succeeded: true, AmountCents: 1, Currency: "USD"}
	router := newPaymentRouter(NewHandler(f.svc, nil, nil))

	rec := doPayment(t, router, f.owner, "/payments/bookings/"+f.booking.ID.String()+"/confirm", ConfirmRequest{IntentID: "pi_1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	got, err := f.store.Get(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusPending, got.Status)
}
