package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
)

func complaintSetup(t *testing.T) (*fixture, models.User, OrderView) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	order := f.confirmed(shopper.ID, f.product(v.ID, "kettle", 30).ID, 1)
	return f, shopper, order
}

func TestComplaintContentLength(t *testing.T) {
	f, shopper, order := complaintSetup(t)
	item := order.Items[0].ID.Hex()

	_, err := f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: item, Title: "broken", Content: strings.Repeat("x", 19),
	})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, map[string]string{"content": "must be at least 20 characters"}, appErr.Fields)

	c, err := f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: item, Title: "broken", Content: strings.Repeat("x", 20),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintPending, c.Status)
}

func TestComplaintContentCountsSurroundingSpaces(t *testing.T) {
	f, shopper, order := complaintSetup(t)
	item := order.Items[0].ID.Hex()

	padded := "  " + strings.Repeat("x", 16) + "  "
	c, err := f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: item, Title: "broken", Content: padded,
	})
	require.NoError(t, err)
	assert.Equal(t, padded, c.Content)

	_, err = f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: item, Title: "broken", Content: strings.Repeat(" ", 25),
	})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, map[string]string{"content": "must not be blank"}, appErr.Fields)
}

func TestComplaintReportsEveryBadField(t *testing.T) {
	f, shopper, _ := complaintSetup(t)

	_, err := f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: "not-an-id",
		Title:      strings.Repeat("t", 101),
		Content:    "too short",
	})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Len(t, appErr.Fields, 3)
	assert.Equal(t, "is not a valid id", appErr.Fields["cartItemId"])
	assert.Equal(t, "must be at most 100 characters", appErr.Fields["title"])
	assert.Contains(t, appErr.Fields, "content")
}

func TestComplaintTargets(t *testing.T) {
	f, shopper, order := complaintSetup(t)
	valid := FileComplaintInput{CartItemID: order.Items[0].ID.Hex(), Title: "late", Content: "the parcel never arrived at all"}

	_, err := f.svc.FileComplaint(f.ctx, f.user(models.RoleUser).ID, valid)
	requireKind(t, err, apperr.KindNotFound)

	unknown := valid
	unknown.CartItemID = primitive.NewObjectID().Hex()
	_, err = f.svc.FileComplaint(f.ctx, shopper.ID, unknown)
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.FileComplaint(f.ctx, shopper.ID, valid)
	require.NoError(t, err)
	_, err = f.svc.FileComplaint(f.ctx, shopper.ID, valid)
	requireKind(t, err, apperr.KindConflict)
}

func TestResolveComplaint(t *testing.T) {
	f, shopper, order := complaintSetup(t)
	c, err := f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: order.Items[0].ID.Hex(), Title: "dented", Content: "arrived with a dent on the lid",
	})
	require.NoError(t, err)

	_, err = f.svc.ResolveComplaint(f.ctx, c.ID.Hex(), ResolveComplaintInput{Status: "lost"})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, appErr.Fields, "reply")
	assert.Contains(t, appErr.Fields, "status")

	_, err = f.svc.ResolveComplaint(f.ctx, primitive.NewObjectID().Hex(), ResolveComplaintInput{Reply: "ok", Status: models.ComplaintResolved})
	requireKind(t, err, apperr.KindNotFound)

	pending, err := f.svc.PendingComplaints(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "kettle", pending[0].ProductName)

	resolved, err := f.svc.ResolveComplaint(f.ctx, c.ID.Hex(), ResolveComplaintInput{Reply: "refund issued", Status: models.ComplaintResolved})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintResolved, resolved.Status)

	_, err = f.svc.ResolveComplaint(f.ctx, c.ID.Hex(), ResolveComplaintInput{Reply: "again", Status: models.ComplaintRejected})
	requireKind(t, err, apperr.KindConflict)

	mine, err := f.svc.UserComplaints(f.ctx, shopper.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "refund issued", mine[0].Reply)

	pending, err = f.svc.PendingComplaints(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestComplaintOnOpenCartIsRejected(t *testing.T) {
	f := newFixture(t)
	shopper := f.user(models.RoleUser)
	v, _ := f.vendor("v", nil, nil)
	cart := f.add(shopper.ID, f.product(v.ID, "p", 1).ID, 1)

	_, err := f.svc.FileComplaint(f.ctx, shopper.ID, FileComplaintInput{
		CartItemID: cart.Items[0].ID.Hex(), Title: "t", Content: strings.Repeat("c", 25),
	})
	requireKind(t, err, apperr.KindConflict)
}
