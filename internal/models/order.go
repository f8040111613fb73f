package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the ordered lifecycle code persisted on an order.
type OrderStatus int

const (
	OrderOpenCart OrderStatus = iota
	OrderConfirmed
	OrderPaid
	OrderShipped
	OrderDelivered
	OrderCancelled
)

var orderStatusNames = [...]string{
	OrderOpenCart:  "open-cart",
	OrderConfirmed: "confirmed",
	OrderPaid:      "paid",
	OrderShipped:   "shipped",
	OrderDelivered: "delivered",
	OrderCancelled: "cancelled",
}

func (s OrderStatus) String() string {
	if s < 0 || int(s) >= len(orderStatusNames) {
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
	return orderStatusNames[s]
}

// ParseOrderStatus maps a status name back to its code.
func ParseOrderStatus(name string) (OrderStatus, error) {
	for code, n := range orderStatusNames {
		if n == name {
			return OrderStatus(code), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", name)
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseOrderStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Sold reports whether the order's quantities count against stock.
func (s OrderStatus) Sold() bool {
	return s == OrderPaid || s == OrderShipped || s == OrderDelivered
}

// SoldStatuses lists every status for which Sold is true.
var SoldStatuses = []OrderStatus{OrderPaid, OrderShipped, OrderDelivered}

// DeliveryAddress is the address snapshot taken when an order is confirmed.
type DeliveryAddress struct {
	Title  string `bson:"title" json:"title"`
	Detail string `bson:"detail" json:"detail"`
	Note   string `bson:"note,omitempty" json:"note,omitempty"`
}

// Order is one checkout cycle for a user against a single vendor.
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	VendorID        primitive.ObjectID  `bson:"vendorId" json:"vendorId"`
	AgentID         *primitive.ObjectID `bson:"agentId,omitempty" json:"agentId,omitempty"`
	DeliveryAddress *DeliveryAddress    `bson:"deliveryAddress,omitempty" json:"deliveryAddress,omitempty"`
	Total           float64             `bson:"total" json:"total"`
	Status          OrderStatus         `bson:"status" json:"status"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
