package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/store"
)

type ConfirmInput struct {
	AddressID string `json:"addressId"`
}

// OrderLine is a line item with its product name and first gallery image.
type OrderLine struct {
	models.CartItem
	ProductName string `json:"productName"`
	Image       string `json:"image,omitempty"`
}

type OrderView struct {
	models.Order
	Items []OrderLine `json:"items"`
}

// Confirm closes the user's cart and snapshots the delivery address.
func (s *Service) Confirm(ctx context.Context, userID primitive.ObjectID, orderID string, in ConfirmInput) (OrderView, error) {
	id, err := parseID("id", orderID)
	if err != nil {
		return OrderView{}, err
	}

	unlockUser, err := s.locks.LockContext(ctx, userKey(userID))
	if err != nil {
		return OrderView{}, err
	}
	defer unlockUser()
	unlockOrder, err := s.locks.LockContext(ctx, orderKey(id))
	if err != nil {
		return OrderView{}, err
	}
	defer unlockOrder()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.ownedOrder(ctx, Actor{ID: userID, Role: models.RoleUser}, id)
		if err != nil {
			return err
		}
		items, err := s.store.ListCartItems(ctx, []primitive.ObjectID{order.ID})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.Conflict("order %s has no items", order.ID.Hex())
		}
		address, err := s.deliveryAddress(ctx, userID, in.AddressID)
		if err != nil {
			return err
		}
		return s.advance(ctx, order, models.OrderConfirmed, store.OrderUpdate{DeliveryAddress: address})
	})
	if err != nil {
		return OrderView{}, err
	}
	s.afterTransition(id, userID, models.OrderConfirmed)
	return s.orderView(ctx, id)
}

func (s *Service) deliveryAddress(ctx context.Context, userID primitive.ObjectID, addressID string) (*models.DeliveryAddress, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	for _, a := range user.Addresses {
		if (addressID != "" && a.ID == addressID) || (addressID == "" && a.IsDefault) {
			return &models.DeliveryAddress{Title: a.Title, Detail: a.Detail, Note: a.Note}, nil
		}
	}
	if addressID != "" {
		return nil, apperr.NotFound("address not found")
	}
	return nil, nil
}

// Pay moves a confirmed order to paid once every product's derived stock
// covers the order. The check and the write happen under the order lock and
// every product lock, and inside one transaction, so either all of the
// order's quantities become sold or none do.
func (s *Service) Pay(ctx context.Context, userID primitive.ObjectID, orderID string) (OrderView, error) {
	id, err := parseID("id", orderID)
	if err != nil {
		return OrderView{}, err
	}
	actor := Actor{ID: userID, Role: models.RoleUser}

	order, err := s.ownedOrder(ctx, actor, id)
	if err != nil {
		return OrderView{}, err
	}
	items, err := s.store.ListCartItems(ctx, []primitive.ObjectID{order.ID})
	if err != nil {
		return OrderView{}, err
	}

	keys := []string{orderKey(id)}
	for _, item := range items {
		keys = append(keys, productKey(item.ProductID))
	}
	unlock, err := s.locks.LockAllContext(ctx, keys...)
	if err != nil {
		return OrderView{}, err
	}
	defer unlock()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.ownedOrder(ctx, actor, id)
		if err != nil {
			return err
		}
		if !models.CanTransition(order.Status, models.OrderPaid) {
			return illegalTransition(order, models.OrderPaid)
		}
		items, err := s.store.ListCartItems(ctx, []primitive.ObjectID{order.ID})
		if err != nil {
			return err
		}
		if err := s.checkStock(ctx, items); err != nil {
			return err
		}
		productIDs := make([]primitive.ObjectID, 0, len(items))
		for _, item := range items {
			productIDs = append(productIDs, item.ProductID)
		}
		if err := s.store.TouchProducts(ctx, productIDs); err != nil {
			return err
		}
		return s.advance(ctx, order, models.OrderPaid, store.OrderUpdate{})
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindInsufficientStock) {
			s.recorder.PaymentRejected(string(apperr.KindInsufficientStock))
			log.Printf("[ORDER] [ERROR] payment for %s rejected: %v", id.Hex(), apperr.From(err).Details)
		}
		return OrderView{}, err
	}
	s.afterTransition(id, userID, models.OrderPaid)
	return s.orderView(ctx, id)
}

// checkStock validates every item before anything is written. Products are
// checked in id order so the reported product is deterministic.
func (s *Service) checkStock(ctx context.Context, items []models.CartItem) error {
	requested := map[primitive.ObjectID]int{}
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		if _, ok := requested[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	inbound, err := s.store.StockTotals(ctx, ids)
	if err != nil {
		return err
	}
	sold, err := s.store.SoldQuantities(ctx, ids)
	if err != nil {
		return err
	}
	for _, pid := range ids {
		available := inbound[pid] - sold[pid]
		if available-requested[pid] < 0 {
			return apperr.InsufficientStock(pid.Hex(), available, requested[pid])
		}
	}
	return nil
}

// Accept assigns a paid order to a delivery agent and ships it.
func (s *Service) Accept(ctx context.Context, agentID primitive.ObjectID, orderID string) (OrderView, error) {
	id, err := parseID("id", orderID)
	if err != nil {
		return OrderView{}, err
	}
	unlock, err := s.locks.LockContext(ctx, orderKey(id))
	if err != nil {
		return OrderView{}, err
	}
	defer unlock()

	var owner primitive.ObjectID
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return notFound(err, "order")
		}
		if order.AgentID != nil {
			return apperr.Conflict("order %s is already assigned", order.ID.Hex())
		}
		owner = order.UserID
		return s.advance(ctx, order, models.OrderShipped, store.OrderUpdate{AgentID: &agentID})
	})
	if err != nil {
		return OrderView{}, err
	}
	s.afterTransition(id, owner, models.OrderShipped)
	return s.orderView(ctx, id)
}

// Deliver marks a shipped order delivered. Only the assigned agent may.
func (s *Service) Deliver(ctx context.Context, agentID primitive.ObjectID, orderID string) (OrderView, error) {
	id, err := parseID("id", orderID)
	if err != nil {
		return OrderView{}, err
	}
	unlock, err := s.locks.LockContext(ctx, orderKey(id))
	if err != nil {
		return OrderView{}, err
	}
	defer unlock()

	var owner primitive.ObjectID
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return notFound(err, "order")
		}
		if order.Status == models.OrderShipped && (order.AgentID == nil || *order.AgentID != agentID) {
			return apperr.Forbidden("order is assigned to another agent")
		}
		owner = order.UserID
		return s.advance(ctx, order, models.OrderDelivered, store.OrderUpdate{})
	})
	if err != nil {
		return OrderView{}, err
	}
	s.afterTransition(id, owner, models.OrderDelivered)
	return s.orderView(ctx, id)
}

// Cancel terminates an in-flight order. Owners cancel their own orders,
// admins any order. Sold quantities return to stock through the derived
// stock formula because cancelled orders no longer count as sold.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	id, err := parseID("id", orderID)
	if err != nil {
		return OrderView{}, err
	}
	unlock, err := s.locks.LockContext(ctx, orderKey(id))
	if err != nil {
		return OrderView{}, err
	}
	defer unlock()

	var owner primitive.ObjectID
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.ownedOrder(ctx, actor, id)
		if err != nil {
			return err
		}
		owner = order.UserID
		return s.advance(ctx, order, models.OrderCancelled, store.OrderUpdate{})
	})
	if err != nil {
		return OrderView{}, err
	}
	s.afterTransition(id, owner, models.OrderCancelled)
	return s.orderView(ctx, id)
}

// advance applies one state machine step plus its line item rewrite.
func (s *Service) advance(ctx context.Context, order models.Order, to models.OrderStatus, u store.OrderUpdate) error {
	if !models.CanTransition(order.Status, to) {
		return illegalTransition(order, to)
	}
	u.Status = &to
	if err := s.store.UpdateOrder(ctx, order.ID, u); err != nil {
		return notFound(err, "order")
	}
	if itemStatus, ok := models.ItemStatusFor(to); ok {
		return s.store.SetCartItemStatus(ctx, order.ID, itemStatus)
	}
	return nil
}

func illegalTransition(order models.Order, to models.OrderStatus) error {
	return apperr.Conflict("order %s cannot move from %s to %s", order.ID.Hex(), order.Status, to)
}

func (s *Service) afterTransition(orderID, ownerID primitive.ObjectID, to models.OrderStatus) {
	s.recorder.OrderTransition(to)
	log.Printf("[ORDER] [INFO] order %s -> %s", orderID.Hex(), to)
	s.notifyUser(ownerID,
		fmt.Sprintf("Order %s is %s", orderID.Hex(), to),
		fmt.Sprintf("Your order %s is now %s.", orderID.Hex(), to),
	)
}

// ownedOrder loads an order the actor may act on. Other users' orders are
// reported as missing.
func (s *Service) ownedOrder(ctx context.Context, actor Actor, id primitive.ObjectID) (models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, notFound(err, "order")
	}
	switch {
	case actor.Role == models.RoleAdmin:
	case actor.Role == models.RoleAgent && order.AgentID != nil && *order.AgentID == actor.ID:
	case order.UserID == actor.ID:
	default:
		return models.Order{}, apperr.NotFound("order not found")
	}
	return order, nil
}

// Order returns one order with its lines if the actor may see it.
func (s *Service) Order(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	id, err := parseID("id", orderID)
	if err != nil {
		return OrderView{}, err
	}
	if _, err := s.ownedOrder(ctx, actor, id); err != nil {
		return OrderView{}, err
	}
	return s.orderView(ctx, id)
}

// AvailableDeliveries lists paid orders nobody has accepted yet, oldest first.
func (s *Service) AvailableDeliveries(ctx context.Context) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		Statuses:    []models.OrderStatus{models.OrderPaid},
		Unassigned:  true,
		OldestFirst: true,
	})
	if err != nil {
		return nil, err
	}
	return s.orderViews(ctx, orders)
}

// AgentOrders lists the orders assigned to an agent, newest first.
func (s *Service) AgentOrders(ctx context.Context, agentID primitive.ObjectID) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{AgentID: &agentID})
	if err != nil {
		return nil, err
	}
	return s.orderViews(ctx, orders)
}

func (s *Service) orderView(ctx context.Context, id primitive.ObjectID) (OrderView, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return OrderView{}, notFound(err, "order")
	}
	views, err := s.orderViews(ctx, []models.Order{order})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

// orderViews joins orders with their lines, product names and first images,
// keeping the order of the input slice.
func (s *Service) orderViews(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	orderIDs := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}
	items, err := s.store.ListCartItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	names, err := s.productNames(ctx, items)
	if err != nil {
		return nil, err
	}
	productIDs := make([]primitive.ObjectID, 0, len(names))
	for pid := range names {
		productIDs = append(productIDs, pid)
	}
	images, err := s.store.FirstImages(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[primitive.ObjectID][]OrderLine, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], OrderLine{
			CartItem:    item,
			ProductName: names[item.ProductID],
			Image:       images[item.ProductID],
		})
	}
	for _, o := range orders {
		lines := byOrder[o.ID]
		if lines == nil {
			lines = []OrderLine{}
		}
		views = append(views, OrderView{Order: o, Items: lines})
	}
	return views, nil
}
