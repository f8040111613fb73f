package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/apperr"
	"marketplace/internal/service"
)

/*
GET /products
- accepted vendors only, newest first
- optional ?category= and ?vendor= filters
*/
func (h *Handler) GetCatalog() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		log.Printf(
			"[%s] hit page=%s limit=%s category=%s vendor=%s",
			route,
			c.Query("page"),
			c.Query("limit"),
			c.Query("category"),
			c.Query("vendor"),
		)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		result, err := h.svc.ListCatalog(ctx, service.CatalogQuery{
			CategoryID: strings.TrimSpace(c.Query("category")),
			VendorID:   strings.TrimSpace(c.Query("vendor")),
			Page:       page,
			Limit:      limit,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *Handler) GetProductDetail() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		detail, err := h.svc.ProductDetail(ctx, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

/*
GET /products/nearby?lat=&lon=&radiusKm=&limit=
- vendors without coordinates never match
*/
func (h *Handler) GetNearbyProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/nearby"
		defer handlePanic(c, route)
		log.Printf("[%s] hit lat=%s lon=%s radiusKm=%s", route, c.Query("lat"), c.Query("lon"), c.Query("radiusKm"))

		fields := map[string]string{}
		q := service.NearbyQuery{
			Latitude:  floatParam(c, "lat", true, fields),
			Longitude: floatParam(c, "lon", true, fields),
			RadiusKm:  floatParam(c, "radiusKm", false, fields),
		}
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				fields["limit"] = "must be an integer"
			}
			q.Limit = n
		}
		if len(fields) > 0 {
			respondError(c, route, apperr.Validation(fields))
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		products, err := h.svc.NearbyProducts(ctx, q)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": products})
	}
}

// floatParam reads a numeric query parameter, recording a field error when
// it is malformed or required and absent.
func floatParam(c *gin.Context, name string, required bool, fields map[string]string) float64 {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		if required {
			fields[name] = "is required"
		}
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fields[name] = "must be a number"
		return 0
	}
	return v
}

/* ===== CATEGORIES ===== */

func (h *Handler) GetActiveCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		categories, err := h.svc.ListCategories(ctx, true)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

/* ===== REVIEWS ===== */

func (h *Handler) GetProductReviews() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id/reviews"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		reviews, rating, err := h.svc.ProductReviews(ctx, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": reviews, "rating": rating})
	}
}

func (h *Handler) PutReview() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /products/:id/review"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.ReviewInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		review, err := h.svc.UpsertReview(ctx, actor.ID, c.Param("id"), req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

/* ===== COMPLAINTS ===== */

func (h *Handler) CreateComplaint() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /complaints"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.FileComplaintInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		complaint, err := h.svc.FileComplaint(ctx, actor.ID, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, complaint)
	}
}

func (h *Handler) GetUserComplaints() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /complaints"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		complaints, err := h.svc.UserComplaints(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": complaints})
	}
}
