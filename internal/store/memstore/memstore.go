// Package memstore is an in-process store.Store used by tests and by
// STORE_DRIVER=memory for local runs without MongoDB.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

type txKey struct{}

// Store keeps every collection in maps. A transaction holds mu exclusively
// for its whole run and rolls back by restoring a snapshot taken when it
// began. Calls outside a transaction take mu themselves, so they never
// interleave with one and never observe its uncommitted writes.
type Store struct {
	mu   sync.RWMutex
	data collections
}

type collections struct {
	categories map[primitive.ObjectID]models.Category
	vendors    map[primitive.ObjectID]models.Vendor
	products   map[primitive.ObjectID]models.Product
	galleries  map[primitive.ObjectID]models.Gallery
	stock      map[primitive.ObjectID]models.StockEntry
	orders     map[primitive.ObjectID]models.Order
	cartItems  map[primitive.ObjectID]models.CartItem
	complaints map[primitive.ObjectID]models.Complaint
	reviews    map[primitive.ObjectID]models.Review
	users      map[primitive.ObjectID]models.User
	tokens     map[primitive.ObjectID]models.RefreshToken
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: collections{
		categories: map[primitive.ObjectID]models.Category{},
		vendors:    map[primitive.ObjectID]models.Vendor{},
		products:   map[primitive.ObjectID]models.Product{},
		galleries:  map[primitive.ObjectID]models.Gallery{},
		stock:      map[primitive.ObjectID]models.StockEntry{},
		orders:     map[primitive.ObjectID]models.Order{},
		cartItems:  map[primitive.ObjectID]models.CartItem{},
		complaints: map[primitive.ObjectID]models.Complaint{},
		reviews:    map[primitive.ObjectID]models.Review{},
		users:      map[primitive.ObjectID]models.User{},
		tokens:     map[primitive.ObjectID]models.RefreshToken{},
	}}
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock guards a write. Inside a transaction mu is already held.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (c collections) clone() collections {
	return collections{
		categories: cloneMap(c.categories),
		vendors:    cloneMap(c.vendors),
		products:   cloneMap(c.products),
		galleries:  cloneMap(c.galleries),
		stock:      cloneMap(c.stock),
		orders:     cloneMap(c.orders),
		cartItems:  cloneMap(c.cartItems),
		complaints: cloneMap(c.complaints),
		reviews:    cloneMap(c.reviews),
		users:      cloneMap(c.users),
		tokens:     cloneMap(c.tokens),
	}
}

func cloneMap[V any](m map[primitive.ObjectID]V) map[primitive.ObjectID]V {
	out := make(map[primitive.ObjectID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func assignID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]struct{} {
	set := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// newestFirst orders by timestamp then id, both descending.
func newestFirst(ta, tb time.Time, ia, ib primitive.ObjectID) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return ia.Hex() > ib.Hex()
}

/* =========================
   CATALOG
========================= */

func (s *Store) InsertCategory(ctx context.Context, c *models.Category) error {
	defer s.lock(ctx)()
	for _, existing := range s.data.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return store.ErrDuplicate
		}
	}
	assignID(&c.ID)
	s.data.categories[c.ID] = *c
	return nil
}

func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	defer s.rlock(ctx)()
	out := make([]models.Category, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id primitive.ObjectID) (models.Category, error) {
	defer s.rlock(ctx)()
	c, ok := s.data.categories[id]
	if !ok {
		return models.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) InsertVendor(ctx context.Context, v *models.Vendor) error {
	defer s.lock(ctx)()
	for _, existing := range s.data.vendors {
		if existing.OwnerID == v.OwnerID {
			return store.ErrDuplicate
		}
	}
	assignID(&v.ID)
	s.data.vendors[v.ID] = *v
	return nil
}

func (s *Store) GetVendor(ctx context.Context, id primitive.ObjectID) (models.Vendor, error) {
	defer s.rlock(ctx)()
	v, ok := s.data.vendors[id]
	if !ok {
		return models.Vendor{}, store.ErrNotFound
	}
	return v, nil
}

func (s *Store) GetVendorByOwner(ctx context.Context, ownerID primitive.ObjectID) (models.Vendor, error) {
	defer s.rlock(ctx)()
	for _, v := range s.data.vendors {
		if v.OwnerID == ownerID {
			return v, nil
		}
	}
	return models.Vendor{}, store.ErrNotFound
}

func (s *Store) ListVendors(ctx context.Context, f store.VendorFilter) ([]models.Vendor, error) {
	defer s.rlock(ctx)()
	ids := idSet(f.IDs)
	out := make([]models.Vendor, 0)
	for _, v := range s.data.vendors {
		if len(f.IDs) > 0 {
			if _, ok := ids[v.ID]; !ok {
				continue
			}
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (s *Store) SetVendorStatus(ctx context.Context, id primitive.ObjectID, status models.VendorStatus) error {
	defer s.lock(ctx)()
	v, ok := s.data.vendors[id]
	if !ok {
		return store.ErrNotFound
	}
	v.Status = status
	s.data.vendors[id] = v
	return nil
}

func (s *Store) InsertProduct(ctx context.Context, p *models.Product) error {
	defer s.lock(ctx)()
	assignID(&p.ID)
	s.data.products[p.ID] = *p
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	defer s.rlock(ctx)()
	p, ok := s.data.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	defer s.rlock(ctx)()
	vendors := idSet(f.VendorIDs)
	ids := idSet(f.IDs)
	out := make([]models.Product, 0)
	for _, p := range s.data.products {
		if f.VendorIDs != nil {
			if _, ok := vendors[p.VendorID]; !ok {
				continue
			}
		}
		if len(f.IDs) > 0 {
			if _, ok := ids[p.ID]; !ok {
				continue
			}
		}
		if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return paginate(out, f.Skip, f.Limit), nil
}

func paginate[T any](items []T, skip, limit int64) []T {
	if skip > 0 {
		if skip >= int64(len(items)) {
			return []T{}
		}
		items = items[skip:]
	}
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

func (s *Store) InsertGallery(ctx context.Context, g *models.Gallery) error {
	defer s.lock(ctx)()
	assignID(&g.ID)
	s.data.galleries[g.ID] = *g
	return nil
}

func (s *Store) FirstImages(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	defer s.rlock(ctx)()
	wanted := idSet(productIDs)
	first := map[primitive.ObjectID]models.Gallery{}
	for _, g := range s.data.galleries {
		if _, ok := wanted[g.ProductID]; !ok {
			continue
		}
		cur, ok := first[g.ProductID]
		if !ok || g.CreatedAt.Before(cur.CreatedAt) ||
			(g.CreatedAt.Equal(cur.CreatedAt) && g.ID.Hex() < cur.ID.Hex()) {
			first[g.ProductID] = g
		}
	}
	out := make(map[primitive.ObjectID]string, len(first))
	for pid, g := range first {
		out[pid] = g.ImagePath
	}
	return out, nil
}

/* =========================
   STOCK
========================= */

func (s *Store) AppendStock(ctx context.Context, e *models.StockEntry) error {
	defer s.lock(ctx)()
	assignID(&e.ID)
	s.data.stock[e.ID] = *e
	return nil
}

func (s *Store) StockTotals(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	defer s.rlock(ctx)()
	wanted := idSet(productIDs)
	out := make(map[primitive.ObjectID]int, len(productIDs))
	for _, e := range s.data.stock {
		if _, ok := wanted[e.ProductID]; ok {
			out[e.ProductID] += e.Quantity
		}
	}
	return out, nil
}

func (s *Store) SoldQuantities(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	defer s.rlock(ctx)()
	wanted := idSet(productIDs)
	out := make(map[primitive.ObjectID]int, len(productIDs))
	for _, item := range s.data.cartItems {
		if _, ok := wanted[item.ProductID]; !ok {
			continue
		}
		order, ok := s.data.orders[item.OrderID]
		if !ok || !order.Status.Sold() {
			continue
		}
		out[item.ProductID] += item.Quantity
	}
	return out, nil
}

// TouchProducts is a no-op: memory transactions are already serialized.
func (s *Store) TouchProducts(context.Context, []primitive.ObjectID) error {
	return nil
}
