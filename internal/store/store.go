// Package store declares the persistence contract the marketplace services
// run against. The Mongo implementation lives in internal/database and an
// in-memory one in internal/store/memstore.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Tx runs fn so that every write issued with the ctx it receives commits or
// aborts together.
type Tx interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductFilter struct {
	VendorIDs  []primitive.ObjectID
	CategoryID *primitive.ObjectID
	IDs        []primitive.ObjectID
	Skip       int64
	Limit      int64
}

type VendorFilter struct {
	IDs    []primitive.ObjectID
	Status models.VendorStatus
}

type CatalogStore interface {
	InsertCategory(ctx context.Context, c *models.Category) error
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	GetCategory(ctx context.Context, id primitive.ObjectID) (models.Category, error)

	InsertVendor(ctx context.Context, v *models.Vendor) error
	GetVendor(ctx context.Context, id primitive.ObjectID) (models.Vendor, error)
	GetVendorByOwner(ctx context.Context, ownerID primitive.ObjectID) (models.Vendor, error)
	ListVendors(ctx context.Context, f VendorFilter) ([]models.Vendor, error)
	SetVendorStatus(ctx context.Context, id primitive.ObjectID, status models.VendorStatus) error

	InsertProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	// ListProducts returns products newest first, ties by id descending.
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)

	InsertGallery(ctx context.Context, g *models.Gallery) error
	// FirstImages maps each product to its earliest gallery image path.
	FirstImages(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]string, error)
}

type StockStore interface {
	AppendStock(ctx context.Context, e *models.StockEntry) error
	// StockTotals sums ledger quantities per product.
	StockTotals(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error)
	// SoldQuantities sums cart item quantities whose order status counts as sold.
	SoldQuantities(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error)
	// TouchProducts marks products as written inside the current transaction
	// so that concurrent transactions over the same products conflict.
	TouchProducts(ctx context.Context, productIDs []primitive.ObjectID) error
}

type OrderFilter struct {
	UserID   *primitive.ObjectID
	VendorID *primitive.ObjectID
	AgentID  *primitive.ObjectID
	Statuses []models.OrderStatus
	// Unassigned keeps only orders without a delivery agent.
	Unassigned bool
	// OldestFirst flips the default newest first ordering.
	OldestFirst bool
}

// OrderUpdate lists the order fields a transition may rewrite. Nil fields are untouched.
type OrderUpdate struct {
	Status          *models.OrderStatus
	Total           *float64
	AgentID         *primitive.ObjectID
	DeliveryAddress *models.DeliveryAddress
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	// FindOpenOrder returns the user's open-cart order or ErrNotFound.
	FindOpenOrder(ctx context.Context, userID primitive.ObjectID) (models.Order, error)
	UpdateOrder(ctx context.Context, id primitive.ObjectID, u OrderUpdate) error
	DeleteOrder(ctx context.Context, id primitive.ObjectID) error
	// ListOrders sorts by createdAt then id, newest first unless OldestFirst.
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)

	InsertCartItem(ctx context.Context, item *models.CartItem) error
	GetCartItem(ctx context.Context, id primitive.ObjectID) (models.CartItem, error)
	FindCartItem(ctx context.Context, orderID, productID primitive.ObjectID) (models.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, id primitive.ObjectID, qty int, total float64) error
	DeleteCartItem(ctx context.Context, id primitive.ObjectID) error
	// ListCartItems returns items of the given orders ordered by createdAt then id.
	ListCartItems(ctx context.Context, orderIDs []primitive.ObjectID) ([]models.CartItem, error)
	SetCartItemStatus(ctx context.Context, orderID primitive.ObjectID, status models.CartItemStatus) error
}

// SaleLine is one cart item that counts as sold, joined with its order and product.
type SaleLine struct {
	CartItemID primitive.ObjectID `bson:"_id"`
	OrderID    primitive.ObjectID `bson:"orderId"`
	ProductID  primitive.ObjectID `bson:"productId"`
	VendorID   primitive.ObjectID `bson:"vendorId"`
	Quantity   int                `bson:"quantity"`
	Total      float64            `bson:"total"`
	OrderedAt  time.Time          `bson:"orderedAt"`
}

type SaleFilter struct {
	From     time.Time
	To       time.Time
	VendorID *primitive.ObjectID
}

type ReportStore interface {
	SaleLines(ctx context.Context, f SaleFilter) ([]SaleLine, error)
}

type ComplaintStore interface {
	InsertComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id primitive.ObjectID) (models.Complaint, error)
	FindComplaintByCartItem(ctx context.Context, cartItemID primitive.ObjectID) (models.Complaint, error)
	ResolveComplaint(ctx context.Context, id primitive.ObjectID, reply string, status models.ComplaintStatus) error
	// ListComplaints sorts newest first. Nil userID lists everyone's.
	ListComplaints(ctx context.Context, userID *primitive.ObjectID, status models.ComplaintStatus) ([]models.Complaint, error)
}

type ReviewStore interface {
	UpsertReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error)
}

type UserStore interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	SetAddresses(ctx context.Context, id primitive.ObjectID, addresses []models.Address) error

	InsertRefreshToken(ctx context.Context, t *models.RefreshToken) error
	FindActiveRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
}

// Store is the full persistence surface.
type Store interface {
	Tx
	CatalogStore
	StockStore
	OrderStore
	ReportStore
	ComplaintStore
	ReviewStore
	UserStore
}
