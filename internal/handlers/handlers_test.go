package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/service"
	"marketplace/internal/storage"
	"marketplace/internal/store/memstore"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	svc    *service.Service
	root   string
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.New(memstore.New(), service.WithAuth(service.AuthConfig{
		JWTSecret:       "handler-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}))
	root := filepath.Join(t.TempDir(), "uploads")
	router := gin.New()
	New(svc, storage.NewLocal(root), opts...).Routes(router)
	return &testServer{t: t, router: router, svc: svc, root: root}
}

type envelope struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Fields    map[string]string `json:"fields"`
	Details   map[string]any    `json:"details"`
	Retryable bool              `json:"retryable"`
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) register(email, role string) service.AuthTokens {
	s.t.Helper()
	body := gin.H{"email": email, "password": "long-enough", "name": "N", "role": role}
	if role == "vendor" {
		body["vendorName"] = "Shop " + email
		body["latitude"] = 41.0
		body["longitude"] = 29.0
	}
	w := s.do(http.MethodPost, "/auth/register", "", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[service.AuthTokens](s.t, w)
}

func (s *testServer) admin() string {
	s.t.Helper()
	require.NoError(s.t, s.svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass"))
	w := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": "admin@example.com", "password": "admin-pass"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[service.AuthTokens](s.t, w).AccessToken
}

// approvedVendor registers a vendor, approves it and gives it one product
// with stock units in the ledger.
func (s *testServer) approvedVendor(adminToken string, stock int) (string, string) {
	s.t.Helper()
	vendor := s.register("vendor@example.com", "vendor")

	w := s.do(http.MethodGet, "/vendor/me", vendor.AccessToken, nil)
	require.Equal(s.t, http.StatusOK, w.Code)
	profile := decode[struct {
		ID string `json:"id"`
	}](s.t, w)

	w = s.do(http.MethodPost, "/admin/vendors/"+profile.ID+"/approve", adminToken, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/vendor/products", vendor.AccessToken, gin.H{"name": "Kettle", "price": 10})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
	}](s.t, w)

	w = s.do(http.MethodPost, "/vendor/products/"+created.Product.ID+"/stock", vendor.AccessToken, gin.H{"quantity": stock})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return vendor.AccessToken, created.Product.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(t, WithPinger(failingPinger{}))
	w = down.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("no primary") }

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	shopper := s.register("shopper@example.com", "user")
	w = s.do(http.MethodGet, "/admin/complaints", shopper.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode[envelope](t, w).Kind)
}

func TestRegisterReportsFieldErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/auth/register", "", gin.H{"email": "bad", "password": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, "validation", env.Kind)
	assert.Contains(t, env.Fields, "email")
	assert.Contains(t, env.Fields, "password")
	assert.Contains(t, env.Fields, "name")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin()
	_, productID := s.approvedVendor(adminToken, 5)
	shopper := s.register("shopper@example.com", "user")

	w := s.do(http.MethodPost, "/me/addresses", shopper.AccessToken, gin.H{"title": "home", "detail": "1 Main St"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/cart/items", shopper.AccessToken, gin.H{"productId": productID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := decode[service.CartView](t, w)
	require.NotNil(t, cart.Order)
	assert.Equal(t, 30.0, cart.Order.Total)
	orderID := cart.Order.ID.Hex()

	w = s.do(http.MethodPost, "/orders/"+orderID+"/confirm", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmed := decode[service.OrderView](t, w)
	require.NotNil(t, confirmed.DeliveryAddress)

	w = s.do(http.MethodPost, "/orders/"+orderID+"/pay", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/orders", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Data []service.OrderView `json:"data"`
	}](t, w)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Kettle", list.Data[0].Items[0].ProductName)

	w = s.do(http.MethodGet, "/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[service.ProductDetail](t, w).StockLeft)

	from := time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	to := time.Now().UTC().AddDate(0, 0, 2).Format(time.DateOnly)
	w = s.do(http.MethodGet, "/admin/reports/revenue?from="+from+"&to="+to, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	revenue := decode[struct {
		Data []service.VendorRevenue `json:"data"`
	}](t, w)
	require.Len(t, revenue.Data, 1)
	assert.Equal(t, 30.0, revenue.Data[0].Revenue)
}

func TestPaymentShortfallEnvelope(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin()
	_, productID := s.approvedVendor(adminToken, 2)
	shopper := s.register("shopper@example.com", "user")

	w := s.do(http.MethodPost, "/cart/items", shopper.AccessToken, gin.H{"productId": productID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orderID := decode[service.CartView](t, w).Order.ID.Hex()

	w = s.do(http.MethodPost, "/orders/"+orderID+"/confirm", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/orders/"+orderID+"/pay", shopper.AccessToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, "insufficient_stock", env.Kind)
	assert.Equal(t, productID, env.Details["productId"])
	assert.EqualValues(t, 2, env.Details["available"])
	assert.EqualValues(t, 3, env.Details["requested"])

	other := s.register("other@example.com", "user")
	w = s.do(http.MethodGet, "/orders/"+orderID, other.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportWindowIsRequired(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin()

	w := s.do(http.MethodGet, "/admin/reports/top-product", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, "is required", env.Fields["from"])
	assert.Equal(t, "is required", env.Fields["to"])

	w = s.do(http.MethodGet, "/admin/reports/top-product?from=2026-01-01&to=yesterday", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[envelope](t, w).Fields, "to")

	w = s.do(http.MethodGet, "/admin/reports/top-product?from=2026-01-01&to=2026-02-01", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNearbyQueryValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/products/nearby?lon=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, "is required", env.Fields["lat"])
	assert.Equal(t, "must be a number", env.Fields["lon"])

	w = s.do(http.MethodGet, "/products/nearby?lat=41&lon=29", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogPagination(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/products?page=0&limit=x", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[envelope](t, w)
	assert.Contains(t, env.Fields, "page")
	assert.Contains(t, env.Fields, "limit")

	w = s.do(http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[service.CatalogPage](t, w)
	assert.EqualValues(t, 1, page.Page)
	assert.EqualValues(t, 20, page.Limit)
}

func TestUploadProductImage(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin()
	vendorToken, productID := s.approvedVendor(adminToken, 1)

	upload := func(filename string) *httptest.ResponseRecorder {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, _ = part.Write([]byte("fake image bytes"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/vendor/products/"+productID+"/images", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+vendorToken)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := upload("kettle.gif")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[envelope](t, w).Fields, "image")

	w = upload("kettle.png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[struct {
		ImagePath string `json:"imagePath"`
	}](t, w)
	assert.Regexp(t, `^uploads/products/[0-9a-f-]{36}\.png$`, saved.ImagePath)
	assert.FileExists(t, filepath.Join(filepath.Dir(s.root), filepath.FromSlash(saved.ImagePath)))

	w = s.do(http.MethodGet, "/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{saved.ImagePath}, decode[service.ProductDetail](t, w).Images)
}

func TestComplaintFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin()
	_, productID := s.approvedVendor(adminToken, 5)
	shopper := s.register("shopper@example.com", "user")

	w := s.do(http.MethodPost, "/cart/items", shopper.AccessToken, gin.H{"productId": productID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode[service.CartView](t, w)
	w = s.do(http.MethodPost, "/orders/"+cart.Order.ID.Hex()+"/confirm", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/complaints", shopper.AccessToken, gin.H{
		"cartItemId": cart.Items[0].ID.Hex(), "title": "dented", "content": "the lid arrived badly dented",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	complaintID := decode[struct {
		ID string `json:"id"`
	}](t, w).ID

	w = s.do(http.MethodPost, "/admin/complaints/"+complaintID+"/resolve", adminToken, gin.H{"reply": "refunded", "status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/admin/complaints/"+complaintID+"/resolve", adminToken, gin.H{"reply": "again", "status": "rejected"})
	assert.Equal(t, http.StatusConflict, w.Code)
}
