package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/store"
)

func TestCartTotalsFollowLineItems(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")
	v, _ := f.vendor("corner shop", nil, nil)
	p := f.product(v.ID, "P", 100)
	q := f.product(v.ID, "Q", 50)

	cart := f.add(shopper.ID, p.ID, 2)
	require.NotNil(t, cart.Order)
	assert.Equal(t, 200.0, cart.Order.Total)
	orderID := cart.Order.ID

	cart = f.add(shopper.ID, q.ID, 1)
	assert.Equal(t, 250.0, cart.Order.Total)
	require.Len(t, cart.Items, 2)

	var pLine, qLine primitive.ObjectID
	for _, line := range cart.Items {
		switch line.ProductID {
		case p.ID:
			pLine = line.ID
			assert.Equal(t, "P", line.ProductName)
		case q.ID:
			qLine = line.ID
		}
	}

	cart, err := f.svc.RemoveItem(f.ctx, shopper.ID, pLine.Hex())
	require.NoError(t, err)
	require.NotNil(t, cart.Order)
	assert.Equal(t, 50.0, cart.Order.Total)
	assert.Equal(t, orderID, cart.Order.ID)

	cart, err = f.svc.RemoveItem(f.ctx, shopper.ID, qLine.Hex())
	require.NoError(t, err)
	assert.Nil(t, cart.Order)
	assert.Empty(t, cart.Items)

	_, err = f.st.GetOrder(f.ctx, orderID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentAddsShareOneCart(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 10)

	const adds = 50
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(f.ctx, shopper.ID, AddItemInput{ProductID: p.ID.Hex(), Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	open, err := f.st.ListOrders(f.ctx, store.OrderFilter{
		UserID:   &shopper.ID,
		Statuses: []models.OrderStatus{models.OrderOpenCart},
	})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, float64(adds*10), open[0].Total)

	items, err := f.st.ListCartItems(f.ctx, []primitive.ObjectID{open[0].ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, adds, items[0].Quantity)
}

func TestAddItemStopsWaitingWhenContextEnds(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 10)

	unlock, err := f.svc.locks.LockContext(f.ctx, userKey(shopper.ID))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(f.ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.AddItem(ctx, shopper.ID, AddItemInput{ProductID: p.ID.Hex(), Quantity: 1})
	appErr := requireKind(t, err, apperr.KindUnavailable)
	assert.True(t, appErr.Retryable())
}

func TestAddItemMergesRepeatedProduct(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 19.99)

	f.add(shopper.ID, p.ID, 2)
	cart := f.add(shopper.ID, p.ID, 3)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 99.95, cart.Items[0].Total)
	assert.Equal(t, 99.95, cart.Order.Total)
}

func TestOrderTotalEqualsSumOfLineTotals(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")
	v, _ := f.vendor("v", nil, nil)
	prices := []float64{0.1, 0.2, 3.33, 12.5, 7.07}
	var productIDs []primitive.ObjectID
	for i, price := range prices {
		productIDs = append(productIDs, f.product(v.ID, string(rune('a'+i)), price).ID)
	}

	for step := 0; step < 20; step++ {
		cart := f.add(shopper.ID, productIDs[step%len(productIDs)], step%3+1)
		totals := make([]float64, 0, len(cart.Items))
		for _, line := range cart.Items {
			totals = append(totals, line.Total)
		}
		require.Equal(t, money.Sum(totals...), cart.Order.Total, "after step %d", step)
	}
}

func TestUpdateQtyAdjustsOrderTotal(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 10)
	q := f.product(v.ID, "Q", 4)
	f.add(shopper.ID, q.ID, 1)
	cart := f.add(shopper.ID, p.ID, 1)

	var line primitive.ObjectID
	for _, l := range cart.Items {
		if l.ProductID == p.ID {
			line = l.ID
		}
	}
	cart, err := f.svc.UpdateQty(f.ctx, shopper.ID, line.Hex(), UpdateQtyInput{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 44.0, cart.Order.Total)

	_, err = f.svc.UpdateQty(f.ctx, shopper.ID, line.Hex(), UpdateQtyInput{Quantity: 0})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, appErr.Fields, "quantity")
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")

	_, err := f.svc.AddItem(f.ctx, shopper.ID, AddItemInput{})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, appErr.Fields, "productId")
	assert.Contains(t, appErr.Fields, "quantity")

	_, err = f.svc.AddItem(f.ctx, shopper.ID, AddItemInput{ProductID: primitive.NewObjectID().Hex(), Quantity: 1})
	requireKind(t, err, apperr.KindNotFound)
}

func TestCartHoldsSingleVendor(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")
	a, _ := f.vendor("a", nil, nil)
	b, _ := f.vendor("b", nil, nil)
	f.add(shopper.ID, f.product(a.ID, "A", 1).ID, 1)

	_, err := f.svc.AddItem(f.ctx, shopper.ID, AddItemInput{ProductID: f.product(b.ID, "B", 1).ID.Hex(), Quantity: 1})
	requireKind(t, err, apperr.KindConflict)
}

func TestCartItemsOfOtherUsersAreHidden(t *testing.T) {
	f := newFixture(t)
	owner := f.user("user")
	other := f.user("user")
	v, _ := f.vendor("v", nil, nil)
	cart := f.add(owner.ID, f.product(v.ID, "P", 1).ID, 1)

	_, err := f.svc.RemoveItem(f.ctx, other.ID, cart.Items[0].ID.Hex())
	requireKind(t, err, apperr.KindNotFound)
}

func TestConfirmedOrderIsNoLongerEditable(t *testing.T) {
	f := newFixture(t)
	shopper := f.user("user")
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 5)
	order := f.confirmed(shopper.ID, p.ID, 1)

	_, err := f.svc.UpdateQty(f.ctx, shopper.ID, order.Items[0].ID.Hex(), UpdateQtyInput{Quantity: 3})
	requireKind(t, err, apperr.KindConflict)

	// A new add starts a fresh cart.
	cart := f.add(shopper.ID, p.ID, 2)
	assert.NotEqual(t, order.ID, cart.Order.ID)
	assert.Equal(t, 10.0, cart.Order.Total)
}
