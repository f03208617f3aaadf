package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderStatusPending, OrderStatusPaid))
	assert.True(t, CanTransitionOrder(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransitionOrder(OrderStatusPaid, OrderStatusRefunded))

	// terminal states are immutable
	assert.False(t, CanTransitionOrder(OrderStatusCancelled, OrderStatusPending))
	assert.False(t, CanTransitionOrder(OrderStatusCancelled, OrderStatusPaid))
	assert.False(t, CanTransitionOrder(OrderStatusRefunded, OrderStatusPaid))

	// no backwards or skipping transitions
	assert.False(t, CanTransitionOrder(OrderStatusPaid, OrderStatusPending))
	assert.False(t, CanTransitionOrder(OrderStatusPaid, OrderStatusCancelled))
	assert.False(t, CanTransitionOrder(OrderStatusPending, OrderStatusRefunded))
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded} {
		assert.True(t, ValidOrderStatus(s))
	}
	assert.False(t, ValidOrderStatus("shipped"))
	assert.False(t, ValidOrderStatus(""))
}
