package memstore

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

func (s *Store) InsertOrder(ctx context.Context, o *models.Order) error {
	defer s.lock(ctx)()
	if o.Status == models.OrderOpenCart {
		for _, existing := range s.data.orders {
			if existing.UserID == o.UserID && existing.Status == models.OrderOpenCart {
				return store.ErrDuplicate
			}
		}
	}
	assignID(&o.ID)
	s.data.orders[o.ID] = *o
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	defer s.rlock(ctx)()
	o, ok := s.data.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) FindOpenOrder(ctx context.Context, userID primitive.ObjectID) (models.Order, error) {
	defer s.rlock(ctx)()
	for _, o := range s.data.orders {
		if o.UserID == userID && o.Status == models.OrderOpenCart {
			return o, nil
		}
	}
	return models.Order{}, store.ErrNotFound
}

func (s *Store) UpdateOrder(ctx context.Context, id primitive.ObjectID, u store.OrderUpdate) error {
	defer s.lock(ctx)()
	o, ok := s.data.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.Total != nil {
		o.Total = *u.Total
	}
	if u.AgentID != nil {
		agent := *u.AgentID
		o.AgentID = &agent
	}
	if u.DeliveryAddress != nil {
		addr := *u.DeliveryAddress
		o.DeliveryAddress = &addr
	}
	o.UpdatedAt = time.Now()
	s.data.orders[id] = o
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	defer s.lock(ctx)()
	if _, ok := s.data.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.orders, id)
	return nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	defer s.rlock(ctx)()
	statuses := map[models.OrderStatus]struct{}{}
	for _, st := range f.Statuses {
		statuses[st] = struct{}{}
	}
	out := make([]models.Order, 0)
	for _, o := range s.data.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.VendorID != nil && o.VendorID != *f.VendorID {
			continue
		}
		if f.AgentID != nil && (o.AgentID == nil || *o.AgentID != *f.AgentID) {
			continue
		}
		if f.Unassigned && o.AgentID != nil {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[o.Status]; !ok {
				continue
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.OldestFirst {
			return newestFirst(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID)
		}
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	defer s.lock(ctx)()
	for _, existing := range s.data.cartItems {
		if existing.OrderID == item.OrderID && existing.ProductID == item.ProductID {
			return store.ErrDuplicate
		}
	}
	assignID(&item.ID)
	s.data.cartItems[item.ID] = *item
	return nil
}

func (s *Store) GetCartItem(ctx context.Context, id primitive.ObjectID) (models.CartItem, error) {
	defer s.rlock(ctx)()
	item, ok := s.data.cartItems[id]
	if !ok {
		return models.CartItem{}, store.ErrNotFound
	}
	return item, nil
}

func (s *Store) FindCartItem(ctx context.Context, orderID, productID primitive.ObjectID) (models.CartItem, error) {
	defer s.rlock(ctx)()
	for _, item := range s.data.cartItems {
		if item.OrderID == orderID && item.ProductID == productID {
			return item, nil
		}
	}
	return models.CartItem{}, store.ErrNotFound
}

func (s *Store) UpdateCartItemQuantity(ctx context.Context, id primitive.ObjectID, qty int, total float64) error {
	defer s.lock(ctx)()
	item, ok := s.data.cartItems[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Quantity = qty
	item.Total = total
	item.UpdatedAt = time.Now()
	s.data.cartItems[id] = item
	return nil
}

func (s *Store) DeleteCartItem(ctx context.Context, id primitive.ObjectID) error {
	defer s.lock(ctx)()
	if _, ok := s.data.cartItems[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.cartItems, id)
	return nil
}

func (s *Store) ListCartItems(ctx context.Context, orderIDs []primitive.ObjectID) ([]models.CartItem, error) {
	defer s.rlock(ctx)()
	wanted := idSet(orderIDs)
	out := make([]models.CartItem, 0)
	for _, item := range s.data.cartItems {
		if _, ok := wanted[item.OrderID]; ok {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (s *Store) SetCartItemStatus(ctx context.Context, orderID primitive.ObjectID, status models.CartItemStatus) error {
	defer s.lock(ctx)()
	now := time.Now()
	for id, item := range s.data.cartItems {
		if item.OrderID == orderID {
			item.Status = status
			item.UpdatedAt = now
			s.data.cartItems[id] = item
		}
	}
	return nil
}

/* =========================
   REPORTS
========================= */

func (s *Store) SaleLines(ctx context.Context, f store.SaleFilter) ([]store.SaleLine, error) {
	defer s.rlock(ctx)()
	out := make([]store.SaleLine, 0)
	for _, item := range s.data.cartItems {
		order, ok := s.data.orders[item.OrderID]
		if !ok || !order.Status.Sold() {
			continue
		}
		if !f.From.IsZero() && order.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !order.CreatedAt.Before(f.To) {
			continue
		}
		product, ok := s.data.products[item.ProductID]
		if !ok {
			continue
		}
		if f.VendorID != nil && product.VendorID != *f.VendorID {
			continue
		}
		out = append(out, store.SaleLine{
			CartItemID: item.ID,
			OrderID:    order.ID,
			ProductID:  product.ID,
			VendorID:   product.VendorID,
			Quantity:   item.Quantity,
			Total:      item.Total,
			OrderedAt:  order.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CartItemID.Hex() < out[j].CartItemID.Hex() })
	return out, nil
}
