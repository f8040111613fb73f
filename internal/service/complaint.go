package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/store"
)

type FileComplaintInput struct {
	CartItemID string `json:"cartItemId" validate:"required"`
	Title      string `json:"title" validate:"required,max=100"`
	Content    string `json:"content" validate:"required,min=20"`
}

type ResolveComplaintInput struct {
	Reply  string                 `json:"reply" validate:"required"`
	Status models.ComplaintStatus `json:"status" validate:"required,oneof=resolved rejected"`
}

// mergeFields folds an id parse failure into the validation result so every
// bad field is reported in one error.
func mergeFields(validationErr, idErr error) error {
	if idErr == nil {
		return validationErr
	}
	if validationErr == nil {
		return idErr
	}
	var v, id *apperr.Error
	if !errors.As(validationErr, &v) || !errors.As(idErr, &id) || v.Kind != apperr.KindValidation {
		return validationErr
	}
	for k, msg := range id.Fields {
		if _, exists := v.Fields[k]; !exists {
			v.Fields[k] = msg
		}
	}
	return v
}

// FileComplaint opens a pending complaint against one of the user's line items.
func (s *Service) FileComplaint(ctx context.Context, userID primitive.ObjectID, in FileComplaintInput) (models.Complaint, error) {
	// Content length counts every character as sent; only a body that is
	// nothing but whitespace is treated as missing.
	in.Title = strings.TrimSpace(in.Title)

	var idErr error
	var itemID primitive.ObjectID
	if in.CartItemID != "" {
		itemID, idErr = parseID("cartItemId", in.CartItemID)
	}
	var blankErr error
	if in.Content != "" && strings.TrimSpace(in.Content) == "" {
		blankErr = apperr.Validation(map[string]string{"content": "must not be blank"})
	}
	if err := mergeFields(mergeFields(s.check(in), idErr), blankErr); err != nil {
		return models.Complaint{}, err
	}

	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return models.Complaint{}, notFound(err, "cart item")
	}
	if item.UserID != userID {
		return models.Complaint{}, apperr.NotFound("cart item not found")
	}
	order, err := s.store.GetOrder(ctx, item.OrderID)
	if err != nil {
		return models.Complaint{}, notFound(err, "order")
	}
	if order.Status == models.OrderOpenCart {
		return models.Complaint{}, apperr.Conflict("cannot complain about an item still in the cart")
	}

	now := s.now()
	c := models.Complaint{
		UserID:     userID,
		CartItemID: item.ID,
		Title:      in.Title,
		Content:    in.Content,
		Status:     models.ComplaintPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertComplaint(ctx, &c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Complaint{}, apperr.Conflict("a complaint for this item already exists")
		}
		return models.Complaint{}, err
	}
	log.Printf("[COMPLAINT] [INFO] complaint %s filed by %s", c.ID.Hex(), userID.Hex())
	return c, nil
}

// ResolveComplaint closes a pending complaint with a reply.
func (s *Service) ResolveComplaint(ctx context.Context, complaintID string, in ResolveComplaintInput) (models.Complaint, error) {
	in.Reply = strings.TrimSpace(in.Reply)
	id, idErr := parseID("id", complaintID)
	if err := mergeFields(s.check(in), idErr); err != nil {
		return models.Complaint{}, err
	}

	c, err := s.store.GetComplaint(ctx, id)
	if err != nil {
		return models.Complaint{}, notFound(err, "complaint")
	}
	if c.Status != models.ComplaintPending {
		return models.Complaint{}, apperr.Conflict("complaint %s is already %s", id.Hex(), c.Status)
	}
	if err := s.store.ResolveComplaint(ctx, id, in.Reply, in.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Complaint{}, apperr.Conflict("complaint %s was resolved concurrently", id.Hex())
		}
		return models.Complaint{}, err
	}
	c.Reply = in.Reply
	c.Status = in.Status
	c.UpdatedAt = s.now()

	s.notifyUser(c.UserID, "Complaint "+string(c.Status), "Your complaint \""+c.Title+"\" was "+string(c.Status)+": "+c.Reply)
	return c, nil
}

// PendingComplaints lists every open complaint, newest first.
func (s *Service) PendingComplaints(ctx context.Context) ([]ComplaintView, error) {
	complaints, err := s.store.ListComplaints(ctx, nil, models.ComplaintPending)
	if err != nil {
		return nil, err
	}
	return s.complaintViews(ctx, complaints)
}
