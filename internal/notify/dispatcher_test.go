package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medport-health/medport-api/internal/events"
)

type memOutbox struct {
	pending   []events.OutboxEvent
	delivered map[uuid.UUID]bool
}

func newMemOutbox() *memOutbox {
	return &memOutbox{delivered: map[uuid.UUID]bool{}}
}

func (m *memOutbox) FetchPending(_ context.Context, limit int) ([]events.OutboxEvent, error) {
	var out []events.OutboxEvent
	for _, evt := range m.pending {
		if !m.delivered[evt.ID] {
			out = append(out, evt)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memOutbox) MarkDelivered(_ context.Context, id uuid.UUID) error {
	m.delivered[id] = true
	return nil
}

func (m *memOutbox) add(t *testing.T, eventType string, payload any) uuid.UUID {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	id := uuid.New()
	m.pending = append(m.pending, events.OutboxEvent{ID: id, EventType: eventType, Payload: body})
	return id
}

func TestDispatchPendingDeliversAndMarks(t *testing.T) {
	outbox := newMemOutbox()
	sender := &recordingSender{}
	svc := NewService(sender, &stubResolver{contacts: testContacts()}, nil)
	d := NewDispatcher(outbox, svc, 0, nil)

	id := outbox.add(t, events.TypeBookingConfirmed, events.BookingConfirmedV1{
		BookingID:   uuid.New(),
		AmountCents: 125000,
		Currency:    "USD",
	})

	require.NoError(t, d.DispatchPending(context.Background()))
	assert.Len(t, sender.sent, 2)
	assert.True(t, outbox.delivered[id])
}

func TestDispatchFailureLeavesEventPending(t *testing.T) {
	outbox := newMemOutbox()
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := NewService(sender, &stubResolver{contacts: testContacts()}, nil)
	d := NewDispatcher(outbox, svc, 0, nil)

	id := outbox.add(t, events.TypeBookingConfirmed, events.BookingConfirmedV1{BookingID: uuid.New()})

	require.NoError(t, d.DispatchPending(context.Background()))
	assert.False(t, outbox.delivered[id])

	// Sender recovers; the next batch delivers it.
	sender.err = nil
	require.NoError(t, d.DispatchPending(context.Background()))
	assert.True(t, outbox.delivered[id])
}

func TestDispatchUnknownTypeIsMarked(t *testing.T) {
	outbox := newMemOutbox()
	svc := NewService(&recordingSender{}, &stubResolver{contacts: testContacts()}, nil)
	d := NewDispatcher(outbox, svc, 0, nil)

	id := outbox.add(t, "mystery.v1", map[string]string{"x": "y"})

	require.NoError(t, d.DispatchPending(context.Background()))
	assert.True(t, outbox.delivered[id])
}
