package order

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

var (
	ErrInvalidTransition        = apperr.Conflict("invalid status transition")
	ErrInvalidPaymentTransition = apperr.Conflict("invalid payment status transition")
)

// statusPredecessors lists, for each target status, the states it may be
// entered from. A status is never its own predecessor.
var statusPredecessors = map[Status][]Status{
	StatusConfirmed:  {StatusPending},
	StatusProcessing: {StatusConfirmed},
	StatusShipped:    {StatusProcessing},
	StatusDelivered:  {StatusShipped},
	StatusCancelled:  {StatusPending, StatusConfirmed, StatusProcessing},
	StatusRefunded:   {StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered},
}

var paymentPredecessors = map[PaymentStatus][]PaymentStatus{
	PaymentPaid:     {PaymentPending},
	PaymentFailed:   {PaymentPending, PaymentPaid},
	PaymentRefunded: {PaymentPending, PaymentPaid},
}

func CanTransition(from, to Status) bool {
	return slices.Contains(statusPredecessors[to], from)
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentPredecessors[to], from)
}

// ApplyStatus moves o to status to. Shipped, delivered and cancelled stamp
// their timestamp the first time only. note, when set, is appended to the
// admin notes.
func ApplyStatus(o *Order, to Status, note string, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	switch to {
	case StatusShipped:
		stamp(&o.ShippedAt, now)
	case StatusDelivered:
		stamp(&o.DeliveredAt, now)
	case StatusCancelled:
		stamp(&o.CancelledAt, now)
	}
	appendNote(o, note)
	o.UpdatedAt = now
	return nil
}

// ApplyPayment moves the payment status and, when a pending order is paid,
// confirms it in the same step.
func ApplyPayment(o *Order, to PaymentStatus, method string, now time.Time) error {
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return fmt.Errorf("%w from %s to %s", ErrInvalidPaymentTransition, o.PaymentStatus, to)
	}
	if to == PaymentPaid && o.Status == StatusCancelled {
		return fmt.Errorf("%w: order %d is cancelled", ErrInvalidPaymentTransition, o.ID)
	}
	o.PaymentStatus = to
	if method != "" {
		o.PaymentMethod = method
	}
	if to == PaymentPaid && o.Status == StatusPending {
		o.Status = StatusConfirmed
	}
	o.UpdatedAt = now
	return nil
}

func stamp(t **time.Time, now time.Time) {
	if *t == nil {
		ts := now
		*t = &ts
	}
}

func appendNote(o *Order, note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if o.AdminNotes == "" {
		o.AdminNotes = note
		return
	}
	o.AdminNotes += "\n" + note
}
