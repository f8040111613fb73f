package service

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/geo"
	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/store"
)

// Window is a half open reporting interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) validate() error {
	fields := map[string]string{}
	if w.From.IsZero() {
		fields["from"] = "is required"
	}
	if w.To.IsZero() {
		fields["to"] = "is required"
	}
	if len(fields) == 0 && !w.To.After(w.From) {
		fields["to"] = "must be after from"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

type VendorRevenue struct {
	VendorID  primitive.ObjectID `json:"vendorId"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Phone     string             `json:"phone,omitempty"`
	Latitude  *float64           `json:"latitude,omitempty"`
	Longitude *float64           `json:"longitude,omitempty"`
	Revenue   float64            `json:"revenue"`
	Quantity  int                `json:"quantity"`
}

type ProductSales struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name"`
	VendorID  primitive.ObjectID `json:"vendorId"`
	Revenue   float64            `json:"revenue"`
	Quantity  int                `json:"quantity"`
}

type tally struct {
	id       primitive.ObjectID
	quantity int
	totals   []float64
}

func (t *tally) revenue() float64 { return money.Sum(t.totals...) }

// groupSales folds sale lines by key. Output order is unspecified.
func groupSales(lines []store.SaleLine, key func(store.SaleLine) primitive.ObjectID) []*tally {
	byKey := map[primitive.ObjectID]*tally{}
	var out []*tally
	for _, l := range lines {
		k := key(l)
		t, ok := byKey[k]
		if !ok {
			t = &tally{id: k}
			byKey[k] = t
			out = append(out, t)
		}
		t.quantity += l.Quantity
		t.totals = append(t.totals, l.Total)
	}
	return out
}

func idLess(a, b primitive.ObjectID) bool { return a.Hex() < b.Hex() }

// byRevenue orders revenue desc, id asc.
func byRevenue(ts []*tally) {
	sort.SliceStable(ts, func(i, j int) bool {
		ri, rj := ts[i].revenue(), ts[j].revenue()
		if ri != rj {
			return ri > rj
		}
		return idLess(ts[i].id, ts[j].id)
	})
}

// byQuantity orders quantity desc, revenue desc, id asc.
func byQuantity(ts []*tally) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].quantity != ts[j].quantity {
			return ts[i].quantity > ts[j].quantity
		}
		ri, rj := ts[i].revenue(), ts[j].revenue()
		if ri != rj {
			return ri > rj
		}
		return idLess(ts[i].id, ts[j].id)
	})
}

func (s *Service) saleLines(ctx context.Context, w Window, vendorID *primitive.ObjectID) ([]store.SaleLine, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	return s.store.SaleLines(ctx, store.SaleFilter{From: w.From, To: w.To, VendorID: vendorID})
}

// VendorRevenue sums sold line totals per vendor over w.
func (s *Service) VendorRevenue(ctx context.Context, w Window) ([]VendorRevenue, error) {
	lines, err := s.saleLines(ctx, w, nil)
	if err != nil {
		return nil, err
	}
	tallies := groupSales(lines, func(l store.SaleLine) primitive.ObjectID { return l.VendorID })
	byRevenue(tallies)

	vendors, err := s.vendorsByID(ctx, tallyIDs(tallies))
	if err != nil {
		return nil, err
	}
	out := make([]VendorRevenue, 0, len(tallies))
	for _, t := range tallies {
		v := vendors[t.id]
		out = append(out, VendorRevenue{
			VendorID:  t.id,
			Name:      v.Name,
			Email:     v.Email,
			Phone:     v.Phone,
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			Revenue:   t.revenue(),
			Quantity:  t.quantity,
		})
	}
	return out, nil
}

// TopVendor returns the vendor that sold the most units over w.
func (s *Service) TopVendor(ctx context.Context, w Window) (VendorRevenue, error) {
	lines, err := s.saleLines(ctx, w, nil)
	if err != nil {
		return VendorRevenue{}, err
	}
	tallies := groupSales(lines, func(l store.SaleLine) primitive.ObjectID { return l.VendorID })
	if len(tallies) == 0 {
		return VendorRevenue{}, apperr.NotFound("no sales in window")
	}
	byQuantity(tallies)
	best := tallies[0]

	v, err := s.store.GetVendor(ctx, best.id)
	if err != nil {
		return VendorRevenue{}, notFound(err, "vendor")
	}
	return VendorRevenue{
		VendorID:  best.id,
		Name:      v.Name,
		Email:     v.Email,
		Phone:     v.Phone,
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
		Revenue:   best.revenue(),
		Quantity:  best.quantity,
	}, nil
}

// TopProduct returns the product that sold the most units over w.
func (s *Service) TopProduct(ctx context.Context, w Window) (ProductSales, error) {
	lines, err := s.saleLines(ctx, w, nil)
	if err != nil {
		return ProductSales{}, err
	}
	tallies := groupSales(lines, func(l store.SaleLine) primitive.ObjectID { return l.ProductID })
	if len(tallies) == 0 {
		return ProductSales{}, apperr.NotFound("no sales in window")
	}
	byQuantity(tallies)
	sales, err := s.productSales(ctx, tallies[:1])
	if err != nil {
		return ProductSales{}, err
	}
	return sales[0], nil
}

// VendorSales breaks one vendor's sales over w down per product.
func (s *Service) VendorSales(ctx context.Context, vendorID string, w Window) ([]ProductSales, error) {
	id, err := parseID("vendorId", vendorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetVendor(ctx, id); err != nil {
		return nil, notFound(err, "vendor")
	}
	lines, err := s.saleLines(ctx, w, &id)
	if err != nil {
		return nil, err
	}
	tallies := groupSales(lines, func(l store.SaleLine) primitive.ObjectID { return l.ProductID })
	byRevenue(tallies)
	return s.productSales(ctx, tallies)
}

func (s *Service) productSales(ctx context.Context, tallies []*tally) ([]ProductSales, error) {
	out := make([]ProductSales, 0, len(tallies))
	if len(tallies) == 0 {
		return out, nil
	}
	products, err := s.store.ListProducts(ctx, store.ProductFilter{IDs: tallyIDs(tallies)})
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, t := range tallies {
		p := byID[t.id]
		out = append(out, ProductSales{
			ProductID: t.id,
			Name:      p.Name,
			VendorID:  p.VendorID,
			Revenue:   t.revenue(),
			Quantity:  t.quantity,
		})
	}
	return out, nil
}

func tallyIDs(ts []*tally) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.id)
	}
	return ids
}

func (s *Service) vendorsByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Vendor, error) {
	out := make(map[primitive.ObjectID]models.Vendor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vendors, err := s.store.ListVendors(ctx, store.VendorFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, v := range vendors {
		out[v.ID] = v
	}
	return out, nil
}

// UserOrders lists every order past the cart stage, newest first.
func (s *Service) UserOrders(ctx context.Context, userID primitive.ObjectID) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		UserID: &userID,
		Statuses: []models.OrderStatus{
			models.OrderConfirmed, models.OrderPaid, models.OrderShipped,
			models.OrderDelivered, models.OrderCancelled,
		},
	})
	if err != nil {
		return nil, err
	}
	return s.orderViews(ctx, orders)
}

// VendorOrders lists the orders placed against a vendor, newest first.
func (s *Service) VendorOrders(ctx context.Context, vendorID primitive.ObjectID) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		VendorID: &vendorID,
		Statuses: []models.OrderStatus{
			models.OrderConfirmed, models.OrderPaid, models.OrderShipped,
			models.OrderDelivered, models.OrderCancelled,
		},
	})
	if err != nil {
		return nil, err
	}
	return s.orderViews(ctx, orders)
}

type ComplaintView struct {
	models.Complaint
	ProductID   primitive.ObjectID `json:"productId"`
	ProductName string             `json:"productName"`
	Image       string             `json:"image,omitempty"`
}

// UserComplaints lists a user's complaints newest first.
func (s *Service) UserComplaints(ctx context.Context, userID primitive.ObjectID) ([]ComplaintView, error) {
	complaints, err := s.store.ListComplaints(ctx, &userID, "")
	if err != nil {
		return nil, err
	}
	return s.complaintViews(ctx, complaints)
}

func (s *Service) complaintViews(ctx context.Context, complaints []models.Complaint) ([]ComplaintView, error) {
	views := make([]ComplaintView, 0, len(complaints))
	items := make([]models.CartItem, 0, len(complaints))
	itemByID := map[primitive.ObjectID]models.CartItem{}
	for _, c := range complaints {
		item, err := s.store.GetCartItem(ctx, c.CartItemID)
		if err != nil {
			return nil, notFound(err, "cart item")
		}
		itemByID[c.CartItemID] = item
		items = append(items, item)
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
	for _, c := range complaints {
		pid := itemByID[c.CartItemID].ProductID
		views = append(views, ComplaintView{
			Complaint:   c,
			ProductID:   pid,
			ProductName: names[pid],
			Image:       images[pid],
		})
	}
	return views, nil
}

// StockLeft is ledger inbound minus sold quantity. Oversold products report
// a negative value.
func (s *Service) StockLeft(ctx context.Context, vendorID, productID string) (int, error) {
	vid, err := parseID("vendorId", vendorID)
	if err != nil {
		return 0, err
	}
	pid, err := parseID("productId", productID)
	if err != nil {
		return 0, err
	}
	product, err := s.store.GetProduct(ctx, pid)
	if err != nil {
		return 0, notFound(err, "product")
	}
	if product.VendorID != vid {
		return 0, apperr.NotFound("product not found")
	}
	left, err := s.stockLeft(ctx, []primitive.ObjectID{pid})
	if err != nil {
		return 0, err
	}
	return left[pid], nil
}

func (s *Service) stockLeft(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	inbound, err := s.store.StockTotals(ctx, ids)
	if err != nil {
		return nil, err
	}
	sold, err := s.store.SoldQuantities(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]int, len(ids))
	for _, id := range ids {
		out[id] = inbound[id] - sold[id]
	}
	return out, nil
}

type StockLine struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name"`
	StockLeft int                `json:"stockLeft"`
}

// VendorStock reports stock left for every product of a vendor, newest product first.
func (s *Service) VendorStock(ctx context.Context, vendorID primitive.ObjectID) ([]StockLine, error) {
	products, err := s.store.ListProducts(ctx, store.ProductFilter{VendorIDs: []primitive.ObjectID{vendorID}})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	left, err := s.stockLeft(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]StockLine, 0, len(products))
	for _, p := range products {
		out = append(out, StockLine{ProductID: p.ID, Name: p.Name, StockLeft: left[p.ID]})
	}
	return out, nil
}

type NearbyQuery struct {
	Latitude  float64 `json:"lat" validate:"latitude"`
	Longitude float64 `json:"lon" validate:"longitude"`
	RadiusKm  float64 `json:"radiusKm" validate:"min=0"`
	Limit     int     `json:"limit" validate:"min=0,max=100"`
}

type NearbyProduct struct {
	models.Product
	VendorName string  `json:"vendorName"`
	DistanceKm float64 `json:"distanceKm"`
	Image      string  `json:"image,omitempty"`
}

// NearbyProducts ranks products by their vendor's distance from the query
// point. Vendors without a usable location never appear.
func (s *Service) NearbyProducts(ctx context.Context, q NearbyQuery) ([]NearbyProduct, error) {
	if err := s.check(q); err != nil {
		return nil, err
	}
	vendors, err := s.store.ListVendors(ctx, store.VendorFilter{Status: models.VendorAccepted})
	if err != nil {
		return nil, err
	}
	distance := map[primitive.ObjectID]float64{}
	names := map[primitive.ObjectID]string{}
	vendorIDs := []primitive.ObjectID{}
	for _, v := range vendors {
		if !geo.Valid(v.Latitude, v.Longitude) {
			continue
		}
		d := geo.DistanceKm(q.Latitude, q.Longitude, *v.Latitude, *v.Longitude)
		if q.RadiusKm > 0 && d > q.RadiusKm {
			continue
		}
		distance[v.ID] = d
		names[v.ID] = v.Name
		vendorIDs = append(vendorIDs, v.ID)
	}
	if len(vendorIDs) == 0 {
		return []NearbyProduct{}, nil
	}

	products, err := s.store.ListProducts(ctx, store.ProductFilter{VendorIDs: vendorIDs})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool {
		di, dj := distance[products[i].VendorID], distance[products[j].VendorID]
		if di != dj {
			return di < dj
		}
		return idLess(products[i].ID, products[j].ID)
	})
	if q.Limit > 0 && len(products) > q.Limit {
		products = products[:q.Limit]
	}

	ids := make([]primitive.ObjectID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	images, err := s.store.FirstImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]NearbyProduct, 0, len(products))
	for _, p := range products {
		out = append(out, NearbyProduct{
			Product:    p,
			VendorName: names[p.VendorID],
			DistanceKm: distance[p.VendorID],
			Image:      images[p.ID],
		})
	}
	return out, nil
}
