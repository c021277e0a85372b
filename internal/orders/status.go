package orders

import (
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
)

// orderTransitions is the only authority on order status movement. Delivered
// and refunded are terminal.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:    {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing: {enums.OrderStatusShipping, enums.OrderStatusCancelled},
	enums.OrderStatusShipping:  {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered: {},
	enums.OrderStatusCancelled: {enums.OrderStatusRefunded},
	enums.OrderStatusRefunded:  {},
}

var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:   {enums.PaymentStatusPaid, enums.PaymentStatusCancelled},
	enums.PaymentStatusPaid:      {enums.PaymentStatusCancelled},
	enums.PaymentStatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether a payment may move between statuses.
func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, candidate := range paymentTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := orderTransitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// Cancellable reports whether an order in the given status may still be
// cancelled by its owner.
func Cancellable(status enums.OrderStatus) bool {
	return CanTransition(status, enums.OrderStatusCancelled)
}

// cancellationClosedError rejects a self-service cancel once the order has
// shipped or settled. From that point only a support agent can unwind it.
func cancellationClosedError(from enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled online; contact customer support").
		WithDetails(map[string]any{"status": from.String()})
}

func transitionError(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}

func paymentTransitionError(from, to enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status transition not allowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
