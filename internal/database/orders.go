package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

func (s *MongoStore) InsertOrder(ctx context.Context, o *models.Order) error {
	res, err := s.col(colOrders).InsertOne(ctx, o)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &o.ID)
	return nil
}

func (s *MongoStore) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	var o models.Order
	err := s.findOne(ctx, colOrders, bson.M{"_id": id}, &o)
	return o, err
}

func (s *MongoStore) FindOpenOrder(ctx context.Context, userID primitive.ObjectID) (models.Order, error) {
	var o models.Order
	err := s.findOne(ctx, colOrders, bson.M{"userId": userID, "status": models.OrderOpenCart}, &o)
	return o, err
}

func (s *MongoStore) UpdateOrder(ctx context.Context, id primitive.ObjectID, u store.OrderUpdate) error {
	set := bson.M{"updatedAt": time.Now()}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Total != nil {
		set["total"] = *u.Total
	}
	if u.AgentID != nil {
		set["agentId"] = *u.AgentID
	}
	if u.DeliveryAddress != nil {
		set["deliveryAddress"] = *u.DeliveryAddress
	}
	return requireMatch(s.col(colOrders).UpdateByID(ctx, id, bson.M{"$set": set}))
}

func (s *MongoStore) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	return requireDeleted(s.col(colOrders).DeleteOne(ctx, bson.M{"_id": id}))
}

func (s *MongoStore) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.VendorID != nil {
		filter["vendorId"] = *f.VendorID
	}
	if f.AgentID != nil {
		filter["agentId"] = *f.AgentID
	} else if f.Unassigned {
		filter["agentId"] = bson.M{"$exists": false}
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	dir := -1
	if f.OldestFirst {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}})
	return findAll[models.Order](ctx, s.col(colOrders), filter, opts)
}

func (s *MongoStore) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	res, err := s.col(colCartItems).InsertOne(ctx, item)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &item.ID)
	return nil
}

func (s *MongoStore) GetCartItem(ctx context.Context, id primitive.ObjectID) (models.CartItem, error) {
	var item models.CartItem
	err := s.findOne(ctx, colCartItems, bson.M{"_id": id}, &item)
	return item, err
}

func (s *MongoStore) FindCartItem(ctx context.Context, orderID, productID primitive.ObjectID) (models.CartItem, error) {
	var item models.CartItem
	err := s.findOne(ctx, colCartItems, bson.M{"orderId": orderID, "productId": productID}, &item)
	return item, err
}

func (s *MongoStore) UpdateCartItemQuantity(ctx context.Context, id primitive.ObjectID, qty int, total float64) error {
	return requireMatch(s.col(colCartItems).UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"quantity":  qty,
		"total":     total,
		"updatedAt": time.Now(),
	}}))
}

func (s *MongoStore) DeleteCartItem(ctx context.Context, id primitive.ObjectID) error {
	return requireDeleted(s.col(colCartItems).DeleteOne(ctx, bson.M{"_id": id}))
}

func (s *MongoStore) ListCartItems(ctx context.Context, orderIDs []primitive.ObjectID) ([]models.CartItem, error) {
	if len(orderIDs) == 0 {
		return []models.CartItem{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[models.CartItem](ctx, s.col(colCartItems), bson.M{"orderId": bson.M{"$in": orderIDs}}, opts)
}

func (s *MongoStore) SetCartItemStatus(ctx context.Context, orderID primitive.ObjectID, status models.CartItemStatus) error {
	_, err := s.col(colCartItems).UpdateMany(ctx,
		bson.M{"orderId": orderID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
	)
	return err
}

/* =========================
   REPORTS
========================= */

// SaleLines joins cart_items -> orders -> products in one pipeline and keeps
// only lines whose order counts as sold inside the window.
func (s *MongoStore) SaleLines(ctx context.Context, f store.SaleFilter) ([]store.SaleLine, error) {
	orderMatch := bson.M{"order.status": bson.M{"$in": models.SoldStatuses}}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lt"] = f.To
	}
	if len(created) > 0 {
		orderMatch["order.createdAt"] = created
	}

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         colOrders,
			"localField":   "orderId",
			"foreignField": "_id",
			"as":           "order",
		}}},
		{{Key: "$unwind", Value: "$order"}},
		{{Key: "$match", Value: orderMatch}},
		{{Key: "$lookup", Value: bson.M{
			"from":         colProducts,
			"localField":   "productId",
			"foreignField": "_id",
			"as":           "product",
		}}},
		{{Key: "$unwind", Value: "$product"}},
	}
	if f.VendorID != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"product.vendorId": *f.VendorID}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$project", Value: bson.M{
			"orderId":   1,
			"productId": 1,
			"quantity":  1,
			"total":     1,
			"vendorId":  "$product.vendorId",
			"orderedAt": "$order.createdAt",
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)

	lines := make([]store.SaleLine, 0)
	if err := s.aggregate(ctx, colCartItems, pipeline, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
