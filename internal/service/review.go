package service

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/money"
)

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// Rating is the read-time aggregate of a product's reviews.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// UpsertReview stores the user's review of a product, replacing any earlier one.
func (s *Service) UpsertReview(ctx context.Context, userID primitive.ObjectID, productID string, in ReviewInput) (models.Review, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	pid, idErr := parseID("productId", productID)
	if err := mergeFields(s.check(in), idErr); err != nil {
		return models.Review{}, err
	}
	if _, err := s.store.GetProduct(ctx, pid); err != nil {
		return models.Review{}, notFound(err, "product")
	}

	now := s.now()
	r := models.Review{
		UserID:    userID,
		ProductID: pid,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertReview(ctx, &r); err != nil {
		return models.Review{}, err
	}
	return r, nil
}

// ProductReviews lists reviews of a product, newest first.
func (s *Service) ProductReviews(ctx context.Context, productID string) ([]models.Review, Rating, error) {
	pid, err := parseID("id", productID)
	if err != nil {
		return nil, Rating{}, err
	}
	if _, err := s.store.GetProduct(ctx, pid); err != nil {
		return nil, Rating{}, notFound(err, "product")
	}
	reviews, err := s.store.ListReviews(ctx, pid)
	if err != nil {
		return nil, Rating{}, err
	}
	return reviews, ratingOf(reviews), nil
}

func (s *Service) productRating(ctx context.Context, productID primitive.ObjectID) (Rating, error) {
	reviews, err := s.store.ListReviews(ctx, productID)
	if err != nil {
		return Rating{}, err
	}
	return ratingOf(reviews), nil
}

func ratingOf(reviews []models.Review) Rating {
	if len(reviews) == 0 {
		return Rating{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return Rating{
		Average: money.Round(float64(sum) / float64(len(reviews))),
		Count:   len(reviews),
	}
}
