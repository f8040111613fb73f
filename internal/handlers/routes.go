package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/middleware"
	"marketplace/internal/service"
	"marketplace/internal/storage"
)

// Handler carries the collaborators every route needs.
type Handler struct {
	svc     *service.Service
	uploads *storage.Local
	db      Pinger
	timeout time.Duration
}

type Option func(*Handler)

// WithPinger enables the database check on /healthz.
func WithPinger(p Pinger) Option { return func(h *Handler) { h.db = p } }

// WithTimeout bounds every request context.
func WithTimeout(d time.Duration) Option { return func(h *Handler) { h.timeout = d } }

func New(svc *service.Service, uploads *storage.Local, opts ...Option) *Handler {
	h := &Handler{svc: svc, uploads: uploads, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts every route on r.
func (h *Handler) Routes(r gin.IRouter) {
	tokens := h.svc

	r.GET("/healthz", h.Health())

	/* ===== AUTH ===== */
	auth := r.Group("/auth")
	auth.POST("/register", h.Register())
	auth.POST("/login", h.Login())
	auth.POST("/refresh", h.Refresh())
	auth.POST("/logout", h.Logout())

	/* ===== PUBLIC CATALOG ===== */
	r.GET("/categories", h.GetActiveCategories())
	r.GET("/products", h.GetCatalog())
	r.GET("/products/nearby", h.GetNearbyProducts())
	r.GET("/products/:id", h.GetProductDetail())
	r.GET("/products/:id/reviews", h.GetProductReviews())

	/* ===== ANY CALLER ===== */
	signedIn := r.Group("", middleware.AuthGuard(tokens))
	signedIn.GET("/me", h.GetMe())
	signedIn.GET("/orders/:id", h.GetOrder())
	signedIn.POST("/orders/:id/cancel", h.CancelOrder())

	/* ===== SHOPPER ===== */
	user := r.Group("", middleware.UserAuth(tokens))
	user.GET("/me/addresses", h.GetUserAddresses())
	user.POST("/me/addresses", h.CreateUserAddress())
	user.DELETE("/me/addresses/:id", h.DeleteUserAddress())

	user.GET("/cart", h.GetCart())
	user.POST("/cart/items", h.AddCartItem())
	user.PATCH("/cart/items/:id", h.UpdateCartItem())
	user.DELETE("/cart/items/:id", h.RemoveCartItem())

	user.GET("/orders", h.GetUserOrders())
	user.POST("/orders/:id/confirm", h.ConfirmOrder())
	user.POST("/orders/:id/pay", h.PayOrder())

	user.PUT("/products/:id/review", h.PutReview())
	user.GET("/complaints", h.GetUserComplaints())
	user.POST("/complaints", h.CreateComplaint())

	/* ===== VENDOR ===== */
	vendor := r.Group("/vendor", middleware.VendorAuth(tokens))
	vendor.GET("/me", h.GetVendorProfile())
	vendor.POST("/products", h.CreateVendorProduct())
	vendor.POST("/products/:id/stock", h.AddVendorStock())
	vendor.POST("/products/:id/images", h.UploadProductImage())
	vendor.GET("/stock", h.GetVendorStock())
	vendor.GET("/stock/:productId", h.GetVendorStockLeft())
	vendor.GET("/sales", h.GetVendorSales())
	vendor.GET("/orders", h.GetVendorOrders())

	/* ===== DELIVERY AGENT ===== */
	agent := r.Group("/agent", middleware.AgentAuth(tokens))
	agent.GET("/deliveries", h.GetAvailableDeliveries())
	agent.GET("/orders", h.GetAgentOrders())
	agent.POST("/orders/:id/accept", h.AcceptDelivery())
	agent.POST("/orders/:id/deliver", h.CompleteDelivery())

	/* ===== ADMIN ===== */
	admin := r.Group("/admin", middleware.AdminAuth(tokens))
	admin.GET("/categories", h.GetAllCategories())
	admin.POST("/categories", h.CreateCategory())
	admin.GET("/vendors", h.GetVendors())
	admin.POST("/vendors/:id/approve", h.ApproveVendor())
	admin.GET("/vendors/:id/sales", h.GetVendorSalesReport())
	admin.GET("/vendors/:id/stock/:productId", h.GetStockLeftReport())
	admin.GET("/complaints", h.GetPendingComplaints())
	admin.POST("/complaints/:id/resolve", h.ResolveComplaint())
	admin.GET("/reports/revenue", h.GetRevenueReport())
	admin.GET("/reports/top-product", h.GetTopProduct())
	admin.GET("/reports/top-vendor", h.GetTopVendor())
}

func (h *Handler) Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /healthz"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), h.db); err != nil {
			log.Printf("[%s] database unavailable: %v", route, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "retryable": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
