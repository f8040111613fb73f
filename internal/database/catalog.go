package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

func (s *MongoStore) InsertCategory(ctx context.Context, c *models.Category) error {
	res, err := s.col(colCategories).InsertOne(ctx, c)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &c.ID)
	return nil
}

func (s *MongoStore) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.Category](ctx, s.col(colCategories), filter, opts)
}

func (s *MongoStore) GetCategory(ctx context.Context, id primitive.ObjectID) (models.Category, error) {
	var c models.Category
	err := s.findOne(ctx, colCategories, bson.M{"_id": id}, &c)
	return c, err
}

func (s *MongoStore) InsertVendor(ctx context.Context, v *models.Vendor) error {
	res, err := s.col(colVendors).InsertOne(ctx, v)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &v.ID)
	return nil
}

func (s *MongoStore) GetVendor(ctx context.Context, id primitive.ObjectID) (models.Vendor, error) {
	var v models.Vendor
	err := s.findOne(ctx, colVendors, bson.M{"_id": id}, &v)
	return v, err
}

func (s *MongoStore) GetVendorByOwner(ctx context.Context, ownerID primitive.ObjectID) (models.Vendor, error) {
	var v models.Vendor
	err := s.findOne(ctx, colVendors, bson.M{"ownerId": ownerID}, &v)
	return v, err
}

func (s *MongoStore) ListVendors(ctx context.Context, f store.VendorFilter) ([]models.Vendor, error) {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return findAll[models.Vendor](ctx, s.col(colVendors), filter, opts)
}

func (s *MongoStore) SetVendorStatus(ctx context.Context, id primitive.ObjectID, status models.VendorStatus) error {
	return requireMatch(s.col(colVendors).UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": status}}))
}

func (s *MongoStore) InsertProduct(ctx context.Context, p *models.Product) error {
	res, err := s.col(colProducts).InsertOne(ctx, p)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &p.ID)
	return nil
}

func (s *MongoStore) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var p models.Product
	err := s.findOne(ctx, colProducts, bson.M{"_id": id}, &p)
	return p, err
}

func (s *MongoStore) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	filter := bson.M{}
	if f.VendorIDs != nil {
		filter["vendorId"] = bson.M{"$in": f.VendorIDs}
	}
	if len(f.IDs) > 0 {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	if f.CategoryID != nil {
		filter["categoryId"] = *f.CategoryID
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return findAll[models.Product](ctx, s.col(colProducts), filter, opts)
}

func (s *MongoStore) InsertGallery(ctx context.Context, g *models.Gallery) error {
	res, err := s.col(colGalleries).InsertOne(ctx, g)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &g.ID)
	return nil
}

func (s *MongoStore) FirstImages(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": bson.M{"$in": productIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$productId",
			"imagePath": bson.M{"$first": "$imagePath"},
		}}},
	}

	var rows []struct {
		ProductID primitive.ObjectID `bson:"_id"`
		ImagePath string             `bson:"imagePath"`
	}
	if err := s.aggregate(ctx, colGalleries, pipeline, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ProductID] = r.ImagePath
	}
	return out, nil
}

func (s *MongoStore) aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := s.col(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

/* =========================
   STOCK
========================= */

func (s *MongoStore) AppendStock(ctx context.Context, e *models.StockEntry) error {
	res, err := s.col(colStock).InsertOne(ctx, e)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &e.ID)
	return nil
}

type productSum struct {
	ProductID primitive.ObjectID `bson:"_id"`
	Quantity  int                `bson:"quantity"`
}

func (s *MongoStore) StockTotals(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": bson.M{"$in": productIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$productId", "quantity": bson.M{"$sum": "$quantity"}}}},
	}
	return s.sumByProduct(ctx, colStock, pipeline)
}

func (s *MongoStore) SoldQuantities(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": bson.M{"$in": productIDs}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         colOrders,
			"localField":   "orderId",
			"foreignField": "_id",
			"as":           "order",
		}}},
		{{Key: "$unwind", Value: "$order"}},
		{{Key: "$match", Value: bson.M{"order.status": bson.M{"$in": models.SoldStatuses}}}},
		{{Key: "$group", Value: bson.M{"_id": "$productId", "quantity": bson.M{"$sum": "$quantity"}}}},
	}
	return s.sumByProduct(ctx, colCartItems, pipeline)
}

func (s *MongoStore) sumByProduct(ctx context.Context, collection string, pipeline mongo.Pipeline) (map[primitive.ObjectID]int, error) {
	var rows []productSum
	if err := s.aggregate(ctx, collection, pipeline, &rows); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]int, len(rows))
	for _, r := range rows {
		out[r.ProductID] = r.Quantity
	}
	return out, nil
}

// TouchProducts bumps stockRevision so that two transactions deciding on the
// same product's stock write the same documents and one of them aborts.
func (s *MongoStore) TouchProducts(ctx context.Context, productIDs []primitive.ObjectID) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := s.col(colProducts).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": productIDs}},
		bson.M{"$inc": bson.M{"stockRevision": 1}},
	)
	return err
}
