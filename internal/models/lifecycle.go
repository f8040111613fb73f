package models

// allowedTransitions is the order state machine. Anything not listed,
// including every move out of a terminal status, is illegal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderOpenCart:  {OrderConfirmed},
	OrderConfirmed: {OrderPaid, OrderCancelled},
	OrderPaid:      {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered, OrderCancelled},
}

// itemStatusOnEnter says which status every line item of an order takes when
// the order enters a given status. Statuses missing here leave items alone.
var itemStatusOnEnter = map[OrderStatus]CartItemStatus{
	OrderConfirmed: CartItemProcessing,
	OrderPaid:      CartItemProcessing,
	OrderShipped:   CartItemShipped,
	OrderCancelled: CartItemCancelled,
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemStatusFor returns the line item status paired with entering to.
func ItemStatusFor(to OrderStatus) (CartItemStatus, bool) {
	status, ok := itemStatusOnEnter[to]
	return status, ok
}
