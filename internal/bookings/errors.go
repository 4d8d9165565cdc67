package bookings

import "errors"

var (
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a booking does not exist.
	ErrNotFound = errors.New("booking not found")
	// ErrForbidden is returned when the requester may not act on a booking.
	ErrForbidden = errors.New("not authorized for this booking")
	// ErrInvalidTransition is returned for status changes outside the
	// transition table. The record is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState is returned when an operation requires a status the
	// booking is not in (e.g. requesting payment on a non-pending booking).
	ErrInvalidState = errors.New("booking is not in a valid state for this operation")
	// ErrPaymentNotCompleted is returned when the processor reports the
	// intent has not succeeded yet. The booking stays pending; the client
	// may retry.
	ErrPaymentNotCompleted = errors.New("payment has not completed")
	// ErrPaymentMismatch is returned when a succeeded capture does not match
	// the booking's price. Treated as a security-relevant anomaly: logged
	// prominently and never auto-confirmed.
	ErrPaymentMismatch = errors.New("captured payment does not match booking price")
)
