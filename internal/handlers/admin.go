package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/service"
)

/* ===== CATEGORIES ===== */

/*
GET /admin/categories
- every category, active or not
- ?isActive=true narrows to active ones
*/
func (h *Handler) GetAllCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/categories"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		activeOnly := strings.TrimSpace(c.Query("isActive")) == "true"
		categories, err := h.svc.ListCategories(ctx, activeOnly)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

func (h *Handler) CreateCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/categories"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		var req service.CreateCategoryInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		category, err := h.svc.CreateCategory(ctx, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

/* ===== VENDORS ===== */

func (h *Handler) GetVendors() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/vendors"
		defer handlePanic(c, route)

		status := models.VendorStatus(strings.TrimSpace(c.Query("status")))
		switch status {
		case "", models.VendorRequested, models.VendorAccepted:
		default:
			respondError(c, route, apperr.Validation(map[string]string{"status": "must be one of requested accepted"}))
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendors, err := h.svc.ListVendors(ctx, status)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": vendors})
	}
}

func (h *Handler) ApproveVendor() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/vendors/:id/approve"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendor, err := h.svc.ApproveVendor(ctx, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	}
}

/* ===== COMPLAINTS ===== */

func (h *Handler) GetPendingComplaints() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/complaints"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		complaints, err := h.svc.PendingComplaints(ctx)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": complaints})
	}
}

func (h *Handler) ResolveComplaint() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/complaints/:id/resolve"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		var req service.ResolveComplaintInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		complaint, err := h.svc.ResolveComplaint(ctx, c.Param("id"), req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, complaint)
	}
}

/* ===== REPORTS ===== */

// parseWindow reads ?from=&to= as dates (2006-01-02) or RFC 3339 times.
func parseWindow(c *gin.Context) (service.Window, error) {
	fields := map[string]string{}
	from := timeParam(c, "from", fields)
	to := timeParam(c, "to", fields)
	if len(fields) > 0 {
		return service.Window{}, apperr.Validation(fields)
	}
	return service.Window{From: from, To: to}, nil
}

func timeParam(c *gin.Context, name string, fields map[string]string) time.Time {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		fields[name] = "is required"
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t
	}
	fields[name] = "must be a date (YYYY-MM-DD) or RFC 3339 time"
	return time.Time{}
}

func (h *Handler) GetRevenueReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/reports/revenue"
		defer handlePanic(c, route)
		log.Printf("[%s] hit from=%s to=%s", route, c.Query("from"), c.Query("to"))

		window, err := parseWindow(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		rows, err := h.svc.VendorRevenue(ctx, window)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func (h *Handler) GetTopProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/reports/top-product"
		defer handlePanic(c, route)

		window, err := parseWindow(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		top, err := h.svc.TopProduct(ctx, window)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, top)
	}
}

func (h *Handler) GetTopVendor() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/reports/top-vendor"
		defer handlePanic(c, route)

		window, err := parseWindow(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		top, err := h.svc.TopVendor(ctx, window)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, top)
	}
}

func (h *Handler) GetVendorSalesReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/vendors/:id/sales"
		defer handlePanic(c, route)

		window, err := parseWindow(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		sales, err := h.svc.VendorSales(ctx, c.Param("id"), window)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sales})
	}
}

func (h *Handler) GetStockLeftReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/vendors/:id/stock/:productId"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		left, err := h.svc.StockLeft(ctx, c.Param("id"), c.Param("productId"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"productId": c.Param("productId"), "stockLeft": left})
	}
}
