package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
)

func TestCatalogListsAcceptedVendorsOnly(t *testing.T) {
	f := newFixture(t)
	open, _ := f.vendor("open", nil, nil)
	pending, _ := f.vendor("pending", nil, nil)
	require.NoError(t, f.st.SetVendorStatus(f.ctx, pending.ID, models.VendorRequested))

	cat, err := f.svc.CreateCategory(f.ctx, CreateCategoryInput{Name: "Tea"})
	require.NoError(t, err)
	_, err = f.svc.CreateCategory(f.ctx, CreateCategoryInput{Name: "tea"})
	requireKind(t, err, apperr.KindConflict)

	first := f.product(open.ID, "first", 1)
	second := models.Product{VendorID: open.ID, CategoryID: &cat.ID, Name: "second", Price: 2, CreatedAt: f.tick()}
	require.NoError(t, f.st.InsertProduct(f.ctx, &second))
	f.product(pending.ID, "hidden", 1)

	page, err := f.svc.ListCatalog(f.ctx, CatalogQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Equal(t, first.ID, page.Items[1].ID)
	assert.Equal(t, "open", page.Items[0].VendorName)

	page, err = f.svc.ListCatalog(f.ctx, CatalogQuery{Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)

	page, err = f.svc.ListCatalog(f.ctx, CatalogQuery{CategoryID: cat.ID.Hex()})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].ID)

	page, err = f.svc.ListCatalog(f.ctx, CatalogQuery{VendorID: pending.ID.Hex()})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = f.svc.ListCatalog(f.ctx, CatalogQuery{VendorID: "x", CategoryID: "y"})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Len(t, appErr.Fields, 2)

	_, err = f.svc.ProductDetail(f.ctx, f.product(pending.ID, "also-hidden", 1).ID.Hex())
	requireKind(t, err, apperr.KindNotFound)
}

func TestVendorStockAndGallery(t *testing.T) {
	f := newFixture(t)
	v, owner := f.vendor("v", nil, nil)
	_, stranger := f.vendor("stranger", nil, nil)
	p, err := f.svc.CreateProduct(f.ctx, owner.ID, CreateProductInput{Name: "lamp", Price: 20})
	require.NoError(t, err)

	_, err = f.svc.AddStock(f.ctx, owner.ID, p.ID.Hex(), AddStockInput{Quantity: 0})
	requireKind(t, err, apperr.KindValidation)
	_, err = f.svc.AddStock(f.ctx, stranger.ID, p.ID.Hex(), AddStockInput{Quantity: 5})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.AddStock(f.ctx, owner.ID, p.ID.Hex(), AddStockInput{Quantity: 5})
	require.NoError(t, err)
	_, err = f.svc.AddStock(f.ctx, owner.ID, p.ID.Hex(), AddStockInput{Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.AddGalleryImage(f.ctx, owner.ID, p.ID.Hex(), "uploads/lamp.png")
	require.NoError(t, err)

	shopper := f.user(models.RoleUser)
	f.paid(shopper.ID, p.ID, 3)
	_, err = f.svc.UpsertReview(f.ctx, shopper.ID, p.ID.Hex(), ReviewInput{Rating: 4})
	require.NoError(t, err)

	detail, err := f.svc.ProductDetail(f.ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 4, detail.StockLeft)
	assert.Equal(t, []string{"uploads/lamp.png"}, detail.Images)
	assert.Equal(t, Rating{Average: 4, Count: 1}, detail.Rating)
	assert.Equal(t, "v", detail.VendorName)
	assert.Equal(t, v.ID, detail.VendorID)

	_, err = f.svc.CreateProduct(f.ctx, owner.ID, CreateProductInput{Name: "x", Price: 1, CategoryID: primitive.NewObjectID().Hex()})
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.CreateProduct(f.ctx, owner.ID, CreateProductInput{Name: "", Price: 0})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, appErr.Fields, "name")
	assert.Contains(t, appErr.Fields, "price")
}

func TestReviewsReplacePerUser(t *testing.T) {
	f := newFixture(t)
	v, _ := f.vendor("v", nil, nil)
	p := f.product(v.ID, "p", 1)
	alice := f.user(models.RoleUser)
	bob := f.user(models.RoleUser)

	_, err := f.svc.UpsertReview(f.ctx, alice.ID, p.ID.Hex(), ReviewInput{Rating: 1, Comment: "meh"})
	require.NoError(t, err)
	_, err = f.svc.UpsertReview(f.ctx, alice.ID, p.ID.Hex(), ReviewInput{Rating: 5, Comment: "grew on me"})
	require.NoError(t, err)
	_, err = f.svc.UpsertReview(f.ctx, bob.ID, p.ID.Hex(), ReviewInput{Rating: 2})
	require.NoError(t, err)

	reviews, rating, err := f.svc.ProductReviews(f.ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, Rating{Average: 3.5, Count: 2}, rating)

	_, err = f.svc.UpsertReview(f.ctx, bob.ID, p.ID.Hex(), ReviewInput{Rating: 6})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, appErr.Fields, "rating")

	_, err = f.svc.UpsertReview(f.ctx, bob.ID, primitive.NewObjectID().Hex(), ReviewInput{Rating: 3})
	requireKind(t, err, apperr.KindNotFound)
}
