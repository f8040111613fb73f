package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
)

func TestOrderLifecycleRewritesItemStatus(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	agent := f.user(models.RoleAgent)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 12)
	f.stock(p.ID, 10)

	order := f.confirmed(shopper.ID, p.ID, 2)
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.Equal(t, models.CartItemProcessing, order.Items[0].Status)

	order, err := f.svc.Pay(f.ctx, shopper.ID, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, order.Status)

	order, err = f.svc.Accept(f.ctx, agent.ID, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, order.Status)
	require.NotNil(t, order.AgentID)
	assert.Equal(t, agent.ID, *order.AgentID)
	assert.Equal(t, models.CartItemShipped, order.Items[0].Status)

	order, err = f.svc.Deliver(f.ctx, agent.ID, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, order.Status)
	assert.Equal(t, models.CartItemShipped, order.Items[0].Status)

	_, err = f.svc.Cancel(f.ctx, Actor{ID: shopper.ID, Role: models.RoleUser}, order.ID.Hex())
	requireKind(t, err, apperr.KindConflict)
}

func TestConfirmSnapshotsDefaultAddress(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	_, err := f.svc.AddAddress(f.ctx, shopper.ID, AddressInput{Title: "home", Detail: "1 Main St"})
	require.NoError(t, err)
	v, _ := f.vendor("v", nil, nil)

	order := f.confirmed(shopper.ID, f.product(v.ID, "P", 1).ID, 1)
	require.NotNil(t, order.DeliveryAddress)
	assert.Equal(t, "1 Main St", order.DeliveryAddress.Detail)

	cart := f.add(shopper.ID, f.product(v.ID, "Q", 1).ID, 1)
	_, err = f.svc.Confirm(f.ctx, shopper.ID, cart.Order.ID.Hex(), ConfirmInput{AddressID: "missing"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestPayRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 1)
	f.stock(p.ID, 10)
	cart := f.add(shopper.ID, p.ID, 1)

	_, err := f.svc.Pay(f.ctx, shopper.ID, cart.Order.ID.Hex())
	requireKind(t, err, apperr.KindConflict)

	order := f.paid(f.user(models.RoleUser).ID, p.ID, 1)
	_, err = f.svc.Pay(f.ctx, order.UserID, order.ID.Hex())
	requireKind(t, err, apperr.KindConflict)
}

func TestPayShortfallWritesNothing(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	plenty := f.product(v.ID, "plenty", 1)
	scarce := f.product(v.ID, "scarce", 1)
	f.stock(plenty.ID, 100)
	f.stock(scarce.ID, 1)

	f.add(shopper.ID, plenty.ID, 5)
	cart := f.add(shopper.ID, scarce.ID, 2)
	_, err := f.svc.Confirm(f.ctx, shopper.ID, cart.Order.ID.Hex(), ConfirmInput{})
	require.NoError(t, err)

	_, err = f.svc.Pay(f.ctx, shopper.ID, cart.Order.ID.Hex())
	appErr := requireKind(t, err, apperr.KindInsufficientStock)
	assert.Equal(t, scarce.ID.Hex(), appErr.Details["productId"])
	assert.Equal(t, 1, appErr.Details["available"])
	assert.Equal(t, 2, appErr.Details["requested"])

	order, err := f.st.GetOrder(f.ctx, cart.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, order.Status)

	left, err := f.svc.StockLeft(f.ctx, v.ID.Hex(), plenty.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 100, left)
}

func TestConcurrentPaymentsNeverOversell(t *testing.T) {
	f := newFixture(t)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 3)
	f.stock(p.ID, 5)

	first := f.confirmed(f.user(models.RoleUser).ID, p.ID, 3)
	second := f.confirmed(f.user(models.RoleUser).ID, p.ID, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, o := range []OrderView{first, second} {
		wg.Add(1)
		go func(i int, o OrderView) {
			defer wg.Done()
			_, errs[i] = f.svc.Pay(f.ctx, o.UserID, o.ID.Hex())
		}(i, o)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperr.IsKind(err, apperr.KindInsufficientStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	left, err := f.svc.StockLeft(f.ctx, v.ID.Hex(), p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 2, left)
}

func TestCancelPaidOrderReturnsStock(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 1)
	f.stock(p.ID, 4)
	order := f.paid(shopper.ID, p.ID, 3)

	left, err := f.svc.StockLeft(f.ctx, v.ID.Hex(), p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	order, err = f.svc.Cancel(f.ctx, Actor{ID: shopper.ID, Role: models.RoleUser}, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Equal(t, models.CartItemCancelled, order.Items[0].Status)

	left, err = f.svc.StockLeft(f.ctx, v.ID.Hex(), p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 4, left)
}

func TestCancelOpenCartIsIllegal(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	cart := f.add(shopper.ID, f.product(v.ID, "P", 1).ID, 1)

	_, err := f.svc.Cancel(f.ctx, Actor{ID: shopper.ID, Role: models.RoleUser}, cart.Order.ID.Hex())
	requireKind(t, err, apperr.KindConflict)
}

func TestOrdersOfOtherUsersAreNotFound(t *testing.T) {
	f := newFixture(t)
	owner := f.user(models.RoleUser)
	stranger := f.user(models.RoleUser)
	admin := f.user(models.RoleAdmin)
	v, _ := f.vendor("v", nil, nil)
	order := f.confirmed(owner.ID, f.product(v.ID, "P", 1).ID, 1)

	_, err := f.svc.Pay(f.ctx, stranger.ID, order.ID.Hex())
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.Cancel(f.ctx, Actor{ID: stranger.ID, Role: models.RoleUser}, order.ID.Hex())
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.Order(f.ctx, Actor{ID: stranger.ID, Role: models.RoleUser}, order.ID.Hex())
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.Cancel(f.ctx, Actor{ID: admin.ID, Role: models.RoleAdmin}, order.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.Pay(f.ctx, owner.ID, primitive.NewObjectID().Hex())
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.Pay(f.ctx, owner.ID, "nope")
	requireKind(t, err, apperr.KindValidation)
}

func TestDeliveryAssignment(t *testing.T) {
	f := newFixture(t)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 1)
	f.stock(p.ID, 10)
	agent := f.user(models.RoleAgent)
	rival := f.user(models.RoleAgent)

	older := f.paid(f.user(models.RoleUser).ID, p.ID, 1)
	newer := f.paid(f.user(models.RoleUser).ID, p.ID, 1)

	available, err := f.svc.AvailableDeliveries(f.ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, older.ID, available[0].ID)
	assert.Equal(t, newer.ID, available[1].ID)

	_, err = f.svc.Accept(f.ctx, agent.ID, older.ID.Hex())
	require.NoError(t, err)
	_, err = f.svc.Accept(f.ctx, rival.ID, older.ID.Hex())
	requireKind(t, err, apperr.KindConflict)

	_, err = f.svc.Deliver(f.ctx, rival.ID, older.ID.Hex())
	requireKind(t, err, apperr.KindForbidden)

	available, err = f.svc.AvailableDeliveries(f.ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, newer.ID, available[0].ID)

	mine, err := f.svc.AgentOrders(f.ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, older.ID, mine[0].ID)

	_, err = f.svc.Deliver(f.ctx, agent.ID, newer.ID.Hex())
	requireKind(t, err, apperr.KindConflict)
}

type countingRecorder struct {
	mu          sync.Mutex
	transitions map[models.OrderStatus]int
	rejected    int
}

func (r *countingRecorder) OrderTransition(to models.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[to]++
}

func (r *countingRecorder) PaymentRejected(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
}

func TestTransitionsAreRecorded(t *testing.T) {
	f := newFixture(t)
	rec := &countingRecorder{transitions: map[models.OrderStatus]int{}}
	f.svc.recorder = rec
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "P", 1)
	f.stock(p.ID, 1)

	f.paid(f.user(models.RoleUser).ID, p.ID, 1)
	late := f.confirmed(f.user(models.RoleUser).ID, p.ID, 1)
	_, err := f.svc.Pay(f.ctx, late.UserID, late.ID.Hex())
	requireKind(t, err, apperr.KindInsufficientStock)

	assert.Equal(t, 2, rec.transitions[models.OrderConfirmed])
	assert.Equal(t, 1, rec.transitions[models.OrderPaid])
	assert.Equal(t, 1, rec.rejected)
}
