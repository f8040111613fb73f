package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderOpenCart, OrderConfirmed))
	assert.True(t, CanTransition(OrderConfirmed, OrderPaid))
	assert.True(t, CanTransition(OrderPaid, OrderShipped))
	assert.True(t, CanTransition(OrderShipped, OrderDelivered))
	assert.True(t, CanTransition(OrderPaid, OrderCancelled))

	assert.False(t, CanTransition(OrderOpenCart, OrderPaid), "payment requires confirmation")
	assert.False(t, CanTransition(OrderPaid, OrderPaid))
	assert.False(t, CanTransition(OrderOpenCart, OrderCancelled))
	for _, to := range []OrderStatus{OrderOpenCart, OrderConfirmed, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled} {
		assert.False(t, CanTransition(OrderDelivered, to))
		assert.False(t, CanTransition(OrderCancelled, to))
	}
}

func TestItemStatusFor(t *testing.T) {
	status, ok := ItemStatusFor(OrderShipped)
	require.True(t, ok)
	assert.Equal(t, CartItemShipped, status)

	_, ok = ItemStatusFor(OrderDelivered)
	assert.False(t, ok)
}

func TestOrderStatusJSONUsesNames(t *testing.T) {
	body, err := json.Marshal(Order{Status: OrderPaid})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"paid"`)

	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"status":"shipped"}`), &o))
	assert.Equal(t, OrderShipped, o.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"lost"}`), &o))
}

func TestSoldStatuses(t *testing.T) {
	for _, s := range SoldStatuses {
		assert.True(t, s.Sold())
	}
	assert.False(t, OrderConfirmed.Sold())
	assert.False(t, OrderCancelled.Sold())
	assert.True(t, OrderDelivered.Terminal())
}
