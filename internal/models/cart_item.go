package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItemStatus tracks fulfillment of a single line item. It moves alongside
// the parent order but is stored and reported independently.
type CartItemStatus string

const (
	CartItemProcessing CartItemStatus = "processing"
	CartItemShipped    CartItemStatus = "shipped"
	CartItemCancelled  CartItemStatus = "cancelled"
)

// CartItem is one (order, product) line. UnitPrice is captured when the line
// is first inserted and Total is always UnitPrice * Quantity.
type CartItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID   primitive.ObjectID `bson:"orderId" json:"orderId"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
	Total     float64            `bson:"total" json:"total"`
	Status    CartItemStatus     `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
