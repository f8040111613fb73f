package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
)

func (s *MongoStore) InsertComplaint(ctx context.Context, c *models.Complaint) error {
	res, err := s.col(colComplaints).InsertOne(ctx, c)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &c.ID)
	return nil
}

func (s *MongoStore) GetComplaint(ctx context.Context, id primitive.ObjectID) (models.Complaint, error) {
	var c models.Complaint
	err := s.findOne(ctx, colComplaints, bson.M{"_id": id}, &c)
	return c, err
}

func (s *MongoStore) FindComplaintByCartItem(ctx context.Context, cartItemID primitive.ObjectID) (models.Complaint, error) {
	var c models.Complaint
	err := s.findOne(ctx, colComplaints, bson.M{"cartItemId": cartItemID}, &c)
	return c, err
}

// ResolveComplaint only matches pending complaints, so a concurrent second
// resolution reports ErrNotFound instead of overwriting the first.
func (s *MongoStore) ResolveComplaint(ctx context.Context, id primitive.ObjectID, reply string, status models.ComplaintStatus) error {
	filter := bson.M{"_id": id, "status": models.ComplaintPending}
	update := bson.M{"$set": bson.M{
		"reply":     reply,
		"status":    status,
		"updatedAt": time.Now(),
	}}
	return requireMatch(s.col(colComplaints).UpdateOne(ctx, filter, update))
}

func (s *MongoStore) ListComplaints(ctx context.Context, userID *primitive.ObjectID, status models.ComplaintStatus) ([]models.Complaint, error) {
	filter := bson.M{}
	if userID != nil {
		filter["userId"] = *userID
	}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[models.Complaint](ctx, s.col(colComplaints), filter, opts)
}

func (s *MongoStore) UpsertReview(ctx context.Context, r *models.Review) error {
	filter := bson.M{"userId": r.UserID, "productId": r.ProductID}
	update := bson.M{
		"$set": bson.M{
			"rating":    r.Rating,
			"comment":   r.Comment,
			"updatedAt": r.UpdatedAt,
		},
		"$setOnInsert": bson.M{"createdAt": r.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return translate(s.col(colReviews).FindOneAndUpdate(ctx, filter, update, opts).Decode(r))
}

func (s *MongoStore) ListReviews(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[models.Review](ctx, s.col(colReviews), bson.M{"productId": productID}, opts)
}

func (s *MongoStore) InsertUser(ctx context.Context, u *models.User) error {
	res, err := s.col(colUsers).InsertOne(ctx, u)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &u.ID)
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.findOne(ctx, colUsers, bson.M{"_id": id}, &u)
	return u, err
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.findOne(ctx, colUsers, bson.M{"email": email}, &u)
	return u, err
}

func (s *MongoStore) SetAddresses(ctx context.Context, id primitive.ObjectID, addresses []models.Address) error {
	return requireMatch(s.col(colUsers).UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"addresses": addresses,
		"updatedAt": time.Now(),
	}}))
}

func (s *MongoStore) InsertRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	res, err := s.col(colRefreshTokens).InsertOne(ctx, t)
	if err != nil {
		return translate(err)
	}
	insertedID(res, &t.ID)
	return nil
}

func (s *MongoStore) FindActiveRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := s.findOne(ctx, colRefreshTokens, bson.M{"tokenHash": tokenHash, "revoked": false}, &t)
	return t, err
}

func (s *MongoStore) RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	return requireMatch(s.col(colRefreshTokens).UpdateOne(ctx,
		bson.M{"_id": id, "revoked": false},
		bson.M{"$set": set},
	))
}
