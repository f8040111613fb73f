package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
)

// EnsureIndexes creates every index the marketplace relies on. The partial
// unique index on open-cart orders is what keeps one cart per user across
// processes; the in-process lock only covers a single instance.
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{colUsers, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}},
		{colRefreshTokens, mongo.IndexModel{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("tokenHash_index"),
		}},
		{colVendors, mongo.IndexModel{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index().SetName("ownerId_unique").SetUnique(true),
		}},
		{colCategories, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique").SetUnique(true),
		}},
		{colProducts, mongo.IndexModel{
			Keys:    bson.D{{Key: "vendorId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("vendor_createdAt_index"),
		}},
		{colGalleries, mongo.IndexModel{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("product_createdAt_index"),
		}},
		{colStock, mongo.IndexModel{
			Keys:    bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().SetName("productId_index"),
		}},
		{colOrders, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_index"),
		}},
		{colOrders, mongo.IndexModel{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetName("open_cart_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.OrderOpenCart}),
		}},
		{colCartItems, mongo.IndexModel{
			Keys:    bson.D{{Key: "orderId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetName("order_product_unique").SetUnique(true),
		}},
		{colCartItems, mongo.IndexModel{
			Keys:    bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().SetName("productId_index"),
		}},
		{colComplaints, mongo.IndexModel{
			Keys:    bson.D{{Key: "cartItemId", Value: 1}},
			Options: options.Index().SetName("cartItemId_unique").SetUnique(true),
		}},
		{colReviews, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetName("user_product_unique").SetUnique(true),
		}},
	}

	var errs []error
	for _, ix := range specs {
		_, err := db.Collection(ix.collection).Indexes().CreateOne(ctx, ix.model)
		if err := logIndexResult(ix.collection+"."+*ix.model.Options.Name, err); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
