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

type CreateCategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsActive    *bool  `json:"isActive"`
}

func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return models.Category{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	c := models.Category{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    active,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertCategory(ctx, &c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Category{}, apperr.Conflict("category %q already exists", in.Name)
		}
		return models.Category{}, err
	}
	log.Printf("[CATALOG] [INFO] category %s created", c.ID.Hex())
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	return s.store.ListCategories(ctx, activeOnly)
}

// ApproveVendor makes a requested vendor visible in the catalog.
func (s *Service) ApproveVendor(ctx context.Context, vendorID string) (models.Vendor, error) {
	id, err := parseID("id", vendorID)
	if err != nil {
		return models.Vendor{}, err
	}
	vendor, err := s.store.GetVendor(ctx, id)
	if err != nil {
		return models.Vendor{}, notFound(err, "vendor")
	}
	if vendor.Status == models.VendorAccepted {
		return models.Vendor{}, apperr.Conflict("vendor %s is already accepted", id.Hex())
	}
	if err := s.store.SetVendorStatus(ctx, id, models.VendorAccepted); err != nil {
		return models.Vendor{}, notFound(err, "vendor")
	}
	vendor.Status = models.VendorAccepted
	s.notifyUser(vendor.OwnerID, "Vendor approved", "Your vendor profile "+vendor.Name+" is now live.")
	return vendor, nil
}

func (s *Service) ListVendors(ctx context.Context, status models.VendorStatus) ([]models.Vendor, error) {
	return s.store.ListVendors(ctx, store.VendorFilter{Status: status})
}

// VendorOf resolves the vendor profile owned by a vendor-role user.
func (s *Service) VendorOf(ctx context.Context, ownerID primitive.ObjectID) (models.Vendor, error) {
	vendor, err := s.store.GetVendorByOwner(ctx, ownerID)
	if err != nil {
		return models.Vendor{}, notFound(err, "vendor")
	}
	return vendor, nil
}

// acceptedVendorOf is VendorOf restricted to approved vendors.
func (s *Service) acceptedVendorOf(ctx context.Context, ownerID primitive.ObjectID) (models.Vendor, error) {
	vendor, err := s.VendorOf(ctx, ownerID)
	if err != nil {
		return models.Vendor{}, err
	}
	if vendor.Status != models.VendorAccepted {
		return models.Vendor{}, apperr.Forbidden("vendor is not approved yet")
	}
	return vendor, nil
}

type CreateProductInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Price       float64 `json:"price" validate:"gt=0"`
	CategoryID  string  `json:"categoryId"`
}

func (s *Service) CreateProduct(ctx context.Context, ownerID primitive.ObjectID, in CreateProductInput) (models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return models.Product{}, err
	}
	vendor, err := s.acceptedVendorOf(ctx, ownerID)
	if err != nil {
		return models.Product{}, err
	}

	p := models.Product{
		VendorID:    vendor.ID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		CreatedAt:   s.now(),
	}
	if in.CategoryID != "" {
		cid, err := parseID("categoryId", in.CategoryID)
		if err != nil {
			return models.Product{}, err
		}
		if _, err := s.store.GetCategory(ctx, cid); err != nil {
			return models.Product{}, notFound(err, "category")
		}
		p.CategoryID = &cid
	}
	if err := s.store.InsertProduct(ctx, &p); err != nil {
		return models.Product{}, err
	}
	log.Printf("[CATALOG] [INFO] vendor %s created product %s", vendor.ID.Hex(), p.ID.Hex())
	return p, nil
}

// ownedProduct loads a product that belongs to the vendor run by ownerID.
func (s *Service) ownedProduct(ctx context.Context, ownerID primitive.ObjectID, productID string) (models.Product, error) {
	pid, err := parseID("productId", productID)
	if err != nil {
		return models.Product{}, err
	}
	vendor, err := s.acceptedVendorOf(ctx, ownerID)
	if err != nil {
		return models.Product{}, err
	}
	product, err := s.store.GetProduct(ctx, pid)
	if err != nil {
		return models.Product{}, notFound(err, "product")
	}
	if product.VendorID != vendor.ID {
		return models.Product{}, apperr.NotFound("product not found")
	}
	return product, nil
}

type AddStockInput struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// AddStock appends an inbound ledger entry. Ledger rows are never edited.
func (s *Service) AddStock(ctx context.Context, ownerID primitive.ObjectID, productID string, in AddStockInput) (models.StockEntry, error) {
	if err := s.check(in); err != nil {
		return models.StockEntry{}, err
	}
	product, err := s.ownedProduct(ctx, ownerID, productID)
	if err != nil {
		return models.StockEntry{}, err
	}

	unlock, err := s.locks.LockContext(ctx, productKey(product.ID))
	if err != nil {
		return models.StockEntry{}, err
	}
	defer unlock()

	now := s.now()
	entry := models.StockEntry{
		ProductID:   product.ID,
		Quantity:    in.Quantity,
		EffectiveAt: now,
		CreatedAt:   now,
	}
	if err := s.store.AppendStock(ctx, &entry); err != nil {
		return models.StockEntry{}, err
	}
	log.Printf("[STOCK] [INFO] +%d for product %s", in.Quantity, product.ID.Hex())
	return entry, nil
}

// AddGalleryImage records an already stored image for a product.
func (s *Service) AddGalleryImage(ctx context.Context, ownerID primitive.ObjectID, productID, imagePath string) (models.Gallery, error) {
	if strings.TrimSpace(imagePath) == "" {
		return models.Gallery{}, apperr.Validation(map[string]string{"image": "is required"})
	}
	product, err := s.ownedProduct(ctx, ownerID, productID)
	if err != nil {
		return models.Gallery{}, err
	}
	g := models.Gallery{ProductID: product.ID, ImagePath: imagePath, CreatedAt: s.now()}
	if err := s.store.InsertGallery(ctx, &g); err != nil {
		return models.Gallery{}, err
	}
	return g, nil
}

type CatalogQuery struct {
	CategoryID string
	VendorID   string
	Page       int64
	Limit      int64
}

type CatalogProduct struct {
	models.Product
	VendorName string `json:"vendorName"`
	Image      string `json:"image,omitempty"`
}

type CatalogPage struct {
	Items []CatalogProduct `json:"items"`
	Page  int64            `json:"page"`
	Limit int64            `json:"limit"`
}

// ListCatalog pages through products of accepted vendors, newest first.
func (s *Service) ListCatalog(ctx context.Context, q CatalogQuery) (CatalogPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	vendors, err := s.store.ListVendors(ctx, store.VendorFilter{Status: models.VendorAccepted})
	if err != nil {
		return CatalogPage{}, err
	}
	names := make(map[primitive.ObjectID]string, len(vendors))
	vendorIDs := make([]primitive.ObjectID, 0, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.Name
		vendorIDs = append(vendorIDs, v.ID)
	}

	f := store.ProductFilter{VendorIDs: vendorIDs, Skip: (q.Page - 1) * q.Limit, Limit: q.Limit}
	fields := map[string]string{}
	if q.VendorID != "" {
		vid, err := primitive.ObjectIDFromHex(q.VendorID)
		if err != nil {
			fields["vendorId"] = "is not a valid id"
		} else if _, ok := names[vid]; ok {
			f.VendorIDs = []primitive.ObjectID{vid}
		} else {
			f.VendorIDs = []primitive.ObjectID{}
		}
	}
	if q.CategoryID != "" {
		cid, err := primitive.ObjectIDFromHex(q.CategoryID)
		if err != nil {
			fields["categoryId"] = "is not a valid id"
		} else {
			f.CategoryID = &cid
		}
	}
	if len(fields) > 0 {
		return CatalogPage{}, apperr.Validation(fields)
	}

	products, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return CatalogPage{}, err
	}
	ids := make([]primitive.ObjectID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	images, err := s.store.FirstImages(ctx, ids)
	if err != nil {
		return CatalogPage{}, err
	}
	items := make([]CatalogProduct, 0, len(products))
	for _, p := range products {
		items = append(items, CatalogProduct{Product: p, VendorName: names[p.VendorID], Image: images[p.ID]})
	}
	return CatalogPage{Items: items, Page: q.Page, Limit: q.Limit}, nil
}

type ProductDetail struct {
	models.Product
	VendorName string   `json:"vendorName"`
	Images     []string `json:"images"`
	StockLeft  int      `json:"stockLeft"`
	Rating     Rating   `json:"rating"`
}

// ProductDetail returns a visible product with its stock and rating.
func (s *Service) ProductDetail(ctx context.Context, productID string) (ProductDetail, error) {
	pid, err := parseID("id", productID)
	if err != nil {
		return ProductDetail{}, err
	}
	product, err := s.store.GetProduct(ctx, pid)
	if err != nil {
		return ProductDetail{}, notFound(err, "product")
	}
	vendor, err := s.store.GetVendor(ctx, product.VendorID)
	if err != nil || vendor.Status != models.VendorAccepted {
		return ProductDetail{}, apperr.NotFound("product not found")
	}
	left, err := s.stockLeft(ctx, []primitive.ObjectID{pid})
	if err != nil {
		return ProductDetail{}, err
	}
	rating, err := s.productRating(ctx, pid)
	if err != nil {
		return ProductDetail{}, err
	}
	images, err := s.store.FirstImages(ctx, []primitive.ObjectID{pid})
	if err != nil {
		return ProductDetail{}, err
	}
	detail := ProductDetail{
		Product:    product,
		VendorName: vendor.Name,
		Images:     []string{},
		StockLeft:  left[pid],
		Rating:     rating,
	}
	if img, ok := images[pid]; ok {
		detail.Images = append(detail.Images, img)
	}
	return detail, nil
}
