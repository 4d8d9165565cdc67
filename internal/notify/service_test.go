package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medport-health/medport-api/internal/events"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubResolver struct {
	contacts *BookingContacts
	err      error
}

func (r *stubResolver) BookingContacts(context.Context, uuid.UUID) (*BookingContacts, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.contacts, nil
}

func testContacts() *BookingContacts {
	return &BookingContacts{
		PatientName:     "Ada Lovelace",
		PatientEmail:    "ada@example.com",
		ProviderName:    "Istanbul Dental Clinic",
		ProviderEmail:   "clinic@example.com",
		TreatmentName:   "Dental Implant",
		AppointmentDate: time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestNotifyBookingConfirmedEmailsBothSides(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, &stubResolver{contacts: testContacts()}, nil)

	err := svc.NotifyBookingConfirmed(context.Background(), events.BookingConfirmedV1{
		BookingID:   uuid.New(),
		AmountCents: 125000,
		Currency:    "USD",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "Dental Implant")
	assert.Contains(t, sender.sent[0].Body, "1250.00 USD")

	assert.Equal(t, "clinic@example.com", sender.sent[1].To)
	assert.Contains(t, sender.sent[1].Body, "Ada Lovelace")
}

func TestNotifyBookingConfirmedSenderFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("sendgrid down")}
	svc := NewService(sender, &stubResolver{contacts: testContacts()}, nil)

	err := svc.NotifyBookingConfirmed(context.Background(), events.BookingConfirmedV1{BookingID: uuid.New()})
	assert.Error(t, err)
}

func TestNotifyCancellationOnly(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, &stubResolver{contacts: testContacts()}, nil)

	err := svc.NotifyBookingStatusChanged(context.Background(), events.BookingStatusChangedV1{
		BookingID: uuid.New(),
		Status:    "completed",
	})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)

	err = svc.NotifyBookingStatusChanged(context.Background(), events.BookingStatusChangedV1{
		BookingID: uuid.New(),
		Status:    "cancelled",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "cancelled")
}
