package service

import (
	"fmt"

	"github.com/bierserv/api/internal/database"
)

// allowedTransitions defines valid status transitions.
// delivered and cancelled have no entry and are terminal.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPending:   {database.OrderStatusPreparing, database.OrderStatusCancelled},
	database.OrderStatusPreparing: {database.OrderStatusReady},
	database.OrderStatusReady:     {database.OrderStatusDelivered},
}

// NextStatuses lists the statuses reachable from current in one step.
func NextStatuses(current database.OrderStatus) []database.OrderStatus {
	next := allowedTransitions[current]
	out := make([]database.OrderStatus, len(next))
	copy(out, next)
	return out
}

// ValidateTransition reports ErrInvalidTransition unless current → next is
// an edge of the workflow.
func ValidateTransition(current, next database.OrderStatus) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}
