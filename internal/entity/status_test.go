package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	legal := map[OrderStatus][]OrderStatus{
		StatusPending:   {StatusApproved, StatusCancelled},
		StatusApproved:  {StatusDownPaid, StatusCancelled},
		StatusDownPaid:  {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusShipped},
		StatusShipped:   {},
		StatusCancelled: {},
	}
	all := []OrderStatus{StatusPending, StatusApproved, StatusDownPaid, StatusConfirmed, StatusShipped, StatusCancelled}

	for from, targets := range legal {
		allowed := map[OrderStatus]bool{}
		for _, to := range targets {
			allowed[to] = true
		}
		for _, to := range all {
			assert.Equal(t, allowed[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusNoSkipping(t *testing.T) {
	// A payment checkpoint can never be jumped over.
	assert.False(t, StatusPending.CanTransitionTo(StatusDownPaid))
	assert.False(t, StatusPending.CanTransitionTo(StatusShipped))
	assert.False(t, StatusApproved.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusDownPaid.CanTransitionTo(StatusShipped))
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, StatusShipped.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusApproved, StatusDownPaid, StatusConfirmed, StatusShipped, StatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, OrderStatus("processing").Valid())
	assert.False(t, OrderStatus("").Valid())
}
