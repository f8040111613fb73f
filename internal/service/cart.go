package service

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/store"
)

type AddItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

type UpdateQtyInput struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// CartLine is a line item with the product name resolved.
type CartLine struct {
	models.CartItem
	ProductName string `json:"productName"`
}

// CartView is the user's open order. Order is nil when the cart is empty.
type CartView struct {
	Order *models.Order `json:"order"`
	Items []CartLine    `json:"items"`
}

// AddItem puts qty units of a product into the user's open cart, creating
// the cart order on first use.
func (s *Service) AddItem(ctx context.Context, userID primitive.ObjectID, in AddItemInput) (CartView, error) {
	if err := s.check(in); err != nil {
		return CartView{}, err
	}
	productID, err := parseID("productId", in.ProductID)
	if err != nil {
		return CartView{}, err
	}

	unlock, err := s.locks.LockContext(ctx, userKey(userID))
	if err != nil {
		return CartView{}, err
	}
	defer unlock()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		product, err := s.store.GetProduct(ctx, productID)
		if err != nil {
			return notFound(err, "product")
		}

		order, err := s.openOrderFor(ctx, userID, product.VendorID)
		if err != nil {
			return err
		}

		now := s.now()
		item, err := s.store.FindCartItem(ctx, order.ID, product.ID)
		switch {
		case err == nil:
			qty := item.Quantity + in.Quantity
			if err := s.store.UpdateCartItemQuantity(ctx, item.ID, qty, money.LineTotal(item.UnitPrice, qty)); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
			item = models.CartItem{
				OrderID:   order.ID,
				ProductID: product.ID,
				UserID:    userID,
				Quantity:  in.Quantity,
				UnitPrice: product.Price,
				Total:     money.LineTotal(product.Price, in.Quantity),
				Status:    models.CartItemProcessing,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.store.InsertCartItem(ctx, &item); err != nil {
				return err
			}
		default:
			return err
		}

		_, err = s.recomputeTotal(ctx, order.ID)
		return err
	})
	if err != nil {
		return CartView{}, err
	}

	log.Printf("[CART] [INFO] user %s added %d x %s", userID.Hex(), in.Quantity, productID.Hex())
	return s.Cart(ctx, userID)
}

// openOrderFor finds the user's open cart or creates one for vendorID.
// A cart holds products of a single vendor.
func (s *Service) openOrderFor(ctx context.Context, userID, vendorID primitive.ObjectID) (models.Order, error) {
	order, err := s.store.FindOpenOrder(ctx, userID)
	if err == nil {
		if order.VendorID != vendorID {
			return models.Order{}, apperr.Conflict("cart already holds products of another vendor")
		}
		return order, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Order{}, err
	}

	now := s.now()
	order = models.Order{
		UserID:    userID,
		VendorID:  vendorID,
		Status:    models.OrderOpenCart,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertOrder(ctx, &order); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Order{}, apperr.Conflict("cart was created concurrently, retry the request")
		}
		return models.Order{}, err
	}
	return order, nil
}

// UpdateQty sets a line item's quantity and moves the order total by the
// same delta.
func (s *Service) UpdateQty(ctx context.Context, userID primitive.ObjectID, lineItemID string, in UpdateQtyInput) (CartView, error) {
	if err := s.check(in); err != nil {
		return CartView{}, err
	}
	itemID, err := parseID("id", lineItemID)
	if err != nil {
		return CartView{}, err
	}

	unlock, err := s.locks.LockContext(ctx, userKey(userID))
	if err != nil {
		return CartView{}, err
	}
	defer unlock()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		item, err := s.openCartItem(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateCartItemQuantity(ctx, item.ID, in.Quantity, money.LineTotal(item.UnitPrice, in.Quantity)); err != nil {
			return err
		}
		_, err = s.recomputeTotal(ctx, item.OrderID)
		return err
	})
	if err != nil {
		return CartView{}, err
	}
	return s.Cart(ctx, userID)
}

// RemoveItem deletes a line item. Removing the last one deletes the order.
func (s *Service) RemoveItem(ctx context.Context, userID primitive.ObjectID, lineItemID string) (CartView, error) {
	itemID, err := parseID("id", lineItemID)
	if err != nil {
		return CartView{}, err
	}

	unlock, err := s.locks.LockContext(ctx, userKey(userID))
	if err != nil {
		return CartView{}, err
	}
	defer unlock()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		item, err := s.openCartItem(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteCartItem(ctx, item.ID); err != nil {
			return notFound(err, "cart item")
		}
		deleted, err := s.recomputeTotal(ctx, item.OrderID)
		if err == nil && deleted {
			log.Printf("[CART] [INFO] order %s emptied and deleted", item.OrderID.Hex())
		}
		return err
	})
	if err != nil {
		return CartView{}, err
	}
	return s.Cart(ctx, userID)
}

// openCartItem loads a line item owned by userID whose order is still open.
func (s *Service) openCartItem(ctx context.Context, userID, itemID primitive.ObjectID) (models.CartItem, error) {
	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return models.CartItem{}, notFound(err, "cart item")
	}
	if item.UserID != userID {
		return models.CartItem{}, apperr.NotFound("cart item not found")
	}
	order, err := s.store.GetOrder(ctx, item.OrderID)
	if err != nil {
		return models.CartItem{}, notFound(err, "order")
	}
	if order.Status != models.OrderOpenCart {
		return models.CartItem{}, apperr.Conflict("order %s is %s; only open carts can change", order.ID.Hex(), order.Status)
	}
	return item, nil
}

// recomputeTotal rewrites the order total as the sum of its line totals and
// deletes the order once nothing is left in it.
func (s *Service) recomputeTotal(ctx context.Context, orderID primitive.ObjectID) (bool, error) {
	items, err := s.store.ListCartItems(ctx, []primitive.ObjectID{orderID})
	if err != nil {
		return false, err
	}
	totals := make([]float64, 0, len(items))
	for _, item := range items {
		totals = append(totals, item.Total)
	}
	total := money.Sum(totals...)

	if len(items) == 0 || total <= 0 {
		for _, item := range items {
			if err := s.store.DeleteCartItem(ctx, item.ID); err != nil {
				return false, err
			}
		}
		return true, s.store.DeleteOrder(ctx, orderID)
	}
	return false, s.store.UpdateOrder(ctx, orderID, store.OrderUpdate{Total: &total})
}

// Cart returns the open order and its lines.
func (s *Service) Cart(ctx context.Context, userID primitive.ObjectID) (CartView, error) {
	order, err := s.store.FindOpenOrder(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return CartView{Items: []CartLine{}}, nil
	}
	if err != nil {
		return CartView{}, err
	}

	items, err := s.store.ListCartItems(ctx, []primitive.ObjectID{order.ID})
	if err != nil {
		return CartView{}, err
	}
	names, err := s.productNames(ctx, items)
	if err != nil {
		return CartView{}, err
	}

	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, CartLine{CartItem: item, ProductName: names[item.ProductID]})
	}
	return CartView{Order: &order, Items: lines}, nil
}

func (s *Service) productNames(ctx context.Context, items []models.CartItem) (map[primitive.ObjectID]string, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	products, err := s.store.ListProducts(ctx, store.ProductFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}
