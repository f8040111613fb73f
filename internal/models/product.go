package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is sold by exactly one vendor. On-hand quantity is never stored
// here; see StockEntry.
type Product struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	VendorID    primitive.ObjectID  `bson:"vendorId" json:"vendorId"`
	CategoryID  *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Name        string              `bson:"name" json:"name"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64             `bson:"price" json:"price"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}

// StockEntry is an append-only inbound stock record.
type StockEntry struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	EffectiveAt time.Time          `bson:"effectiveAt" json:"effectiveAt"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Gallery is one product image.
type Gallery struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	ImagePath string             `bson:"imagePath" json:"imagePath"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
