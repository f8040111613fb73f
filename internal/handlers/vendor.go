package handlers

import (
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/apperr"
	"marketplace/internal/service"
)

const productImageDir = "products"

func (h *Handler) GetVendorProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /vendor/me"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendor, err := h.svc.VendorOf(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	}
}

/*
POST /vendor/products
- JSON body, or multipart form with an optional "image" file
*/
func (h *Handler) CreateVendorProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /vendor/products"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var form multipartProductInput
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			parsed, err := parseMultipartProductRequest(c)
			if err != nil {
				respondError(c, route, err)
				return
			}
			form = parsed
		} else if !bindJSON(c, route, &form.Product) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		product, err := h.svc.CreateProduct(ctx, actor.ID, form.Product)
		if err != nil {
			respondError(c, route, err)
			return
		}

		images := []string{}
		if form.Image != nil {
			imagePath, err := h.saveGalleryImage(c, actor, product.ID.Hex(), form.Image)
			if err != nil {
				respondError(c, route, err)
				return
			}
			images = append(images, imagePath)
		}

		log.Printf("[%s] product %s created by vendor %s", route, product.ID.Hex(), product.VendorID.Hex())
		c.JSON(http.StatusCreated, gin.H{"product": product, "images": images})
	}
}

func (h *Handler) saveGalleryImage(c *gin.Context, actor service.Actor, productID string, file *multipart.FileHeader) (string, error) {
	imagePath, err := h.uploads.SaveImage(productImageDir, file)
	if err != nil {
		return "", imageError(err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.svc.AddGalleryImage(ctx, actor.ID, productID, imagePath); err != nil {
		if delErr := h.uploads.Delete(imagePath); delErr != nil {
			log.Printf("[UPLOAD] [ERROR] cleanup of %s failed: %v", imagePath, delErr)
		}
		return "", err
	}
	return imagePath, nil
}

func (h *Handler) UploadProductImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /vendor/products/:id/images"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			respondError(c, route, apperr.Validation(map[string]string{"image": "is required"}))
			return
		}

		imagePath, err := h.saveGalleryImage(c, actor, c.Param("id"), file)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"imagePath": imagePath})
	}
}

func (h *Handler) AddVendorStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /vendor/products/:id/stock"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.AddStockInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		entry, err := h.svc.AddStock(ctx, actor.ID, c.Param("id"), req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func (h *Handler) GetVendorStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /vendor/stock"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendor, err := h.svc.VendorOf(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		stock, err := h.svc.VendorStock(ctx, vendor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stock})
	}
}

func (h *Handler) GetVendorStockLeft() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /vendor/stock/:productId"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendor, err := h.svc.VendorOf(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		left, err := h.svc.StockLeft(ctx, vendor.ID.Hex(), c.Param("productId"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"productId": c.Param("productId"), "stockLeft": left})
	}
}

func (h *Handler) GetVendorSales() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /vendor/sales"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		window, err := parseWindow(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendor, err := h.svc.VendorOf(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		sales, err := h.svc.VendorSales(ctx, vendor.ID.Hex(), window)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sales})
	}
}

func (h *Handler) GetVendorOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /vendor/orders"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		vendor, err := h.svc.VendorOf(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		orders, err := h.svc.VendorOrders(ctx, vendor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}
