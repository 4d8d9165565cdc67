package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medport-health/medport-api/internal/events"
	"github.com/medport-health/medport-api/pkg/logging"
)

const dispatchBatchSize = 50

// outboxSource is the slice of the outbox store the dispatcher needs.
type outboxSource interface {
	FetchPending(ctx context.Context, limit int) ([]events.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}

// Dispatcher drains the outbox and turns stored events into emails. An
// event is marked delivered only after its handler returns; a crash in
// between redelivers, so handlers must tolerate duplicates.
type Dispatcher struct {
	outbox   outboxSource
	service  *Service
	interval time.Duration
	logger   *logging.Logger
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(outbox outboxSource, service *Service, interval time.Duration, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		outbox:   outbox,
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Run polls the outbox until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher started", "interval", d.interval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				d.logger.Error("outbox dispatch failed", "error", err)
			}
		}
	}
}

// DispatchPending processes one batch of undelivered events.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	pending, err := d.outbox.FetchPending(ctx, dispatchBatchSize)
	if err != nil {
		return err
	}
	for _, evt := range pending {
		if err := d.dispatch(ctx, evt); err != nil {
			// Leave undelivered; the next tick retries.
			d.logger.Error("event dispatch failed", "error", err, "event_id", evt.ID, "event_type", evt.EventType)
			continue
		}
		if err := d.outbox.MarkDelivered(ctx, evt.ID); err != nil {
			d.logger.Error("failed to mark event delivered", "error", err, "event_id", evt.ID)
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, evt events.OutboxEvent) error {
	switch evt.EventType {
	case events.TypeBookingConfirmed:
		var payload events.BookingConfirmedV1
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return err
		}
		return d.service.NotifyBookingConfirmed(ctx, payload)
	case events.TypeBookingCancelled, events.TypeBookingCompleted:
		var payload events.BookingStatusChangedV1
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return err
		}
		return d.service.NotifyBookingStatusChanged(ctx, payload)
	default:
		d.logger.Warn("unknown outbox event type", "event_type", evt.EventType, "event_id", evt.ID)
		return nil
	}
}
