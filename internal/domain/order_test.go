package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
)

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to domain.OrderState
		ok       bool
	}{
		{domain.StatePending, domain.StateConfirmed, true},
		{domain.StateConfirmed, domain.StatePreparing, true},
		{domain.StatePreparing, domain.StateReady, true},
		{domain.StateReady, domain.StateDelivered, true},

		// No skipping steps and no going backwards.
		{domain.StatePending, domain.StatePreparing, false},
		{domain.StateConfirmed, domain.StateReady, false},
		{domain.StateReady, domain.StateConfirmed, false},
		{domain.StatePreparing, domain.StatePending, false},

		// Cancellation from any non-terminal state.
		{domain.StatePending, domain.StateCancelled, true},
		{domain.StateConfirmed, domain.StateCancelled, true},
		{domain.StatePreparing, domain.StateCancelled, true},
		{domain.StateReady, domain.StateCancelled, true},

		// Terminal states are final.
		{domain.StateDelivered, domain.StateCancelled, false},
		{domain.StateCancelled, domain.StatePending, false},
		{domain.StateDelivered, domain.StateDelivered, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStateHelpers(t *testing.T) {
	assert.True(t, domain.StateDelivered.IsTerminal())
	assert.True(t, domain.StateCancelled.IsTerminal())
	assert.False(t, domain.StateReady.IsTerminal())

	assert.True(t, domain.StatePreparing.Valid())
	assert.False(t, domain.OrderState("burnt").Valid())
}

func TestCreateOrderRequestValidate(t *testing.T) {
	good := domain.CreateOrderRequest{
		BranchID: "b1",
		Items: []domain.CreateOrderItem{
			{Name: "Tacos al pastor", Quantity: 3, UnitPrice: 25},
		},
	}
	assert.NoError(t, good.Validate())

	bad := good
	bad.BranchID = ""
	assert.Error(t, bad.Validate())

	bad = good
	bad.Items = nil
	assert.Error(t, bad.Validate())

	bad = good
	bad.Items = []domain.CreateOrderItem{{Name: "", Quantity: 1, UnitPrice: 10}}
	assert.Error(t, bad.Validate())

	bad = good
	bad.Items = []domain.CreateOrderItem{{Name: "Agua", Quantity: 0, UnitPrice: 10}}
	assert.Error(t, bad.Validate())

	bad = good
	bad.Items = []domain.CreateOrderItem{{Name: "Agua", Quantity: 1, UnitPrice: -1}}
	assert.Error(t, bad.Validate())
}

func TestFeedEventRow(t *testing.T) {
	n := &domain.OrderRow{ID: "new"}
	o := &domain.OrderRow{ID: "old"}

	assert.Equal(t, "new", domain.FeedEvent{Kind: domain.EventInsert, New: n}.Row().ID)
	assert.Equal(t, "new", domain.FeedEvent{Kind: domain.EventUpdate, New: n, Old: o}.Row().ID)
	assert.Equal(t, "old", domain.FeedEvent{Kind: domain.EventDelete, Old: o}.Row().ID)
	assert.Nil(t, domain.FeedEvent{}.Row())
}

func TestPartialRowProjection(t *testing.T) {
	full := domain.Order{
		ID:        "o1",
		BranchID:  "b1",
		State:     domain.StateReady,
		Total:     120.5,
		ItemCount: 4,
		LineItems: []domain.OrderItem{{Name: "Pozole", Quantity: 4}},
	}
	row := full.PartialRow()
	assert.Equal(t, "o1", row.ID)
	assert.Equal(t, domain.StateReady, row.State)
	assert.Equal(t, 120.5, row.Total)
	assert.Equal(t, 4, row.ItemCount)
}
