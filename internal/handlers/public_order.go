package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

/* =========================
   CART
========================= */

func (h *Handler) GetCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		cart, err := h.svc.Cart(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func (h *Handler) AddCartItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/items"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.AddItemInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		cart, err := h.svc.AddItem(ctx, actor.ID, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func (h *Handler) UpdateCartItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /cart/items/:id"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.UpdateQtyInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		cart, err := h.svc.UpdateQty(ctx, actor.ID, c.Param("id"), req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func (h *Handler) RemoveCartItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/items/:id"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		cart, err := h.svc.RemoveItem(ctx, actor.ID, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

/* =========================
   ORDERS
========================= */

func (h *Handler) GetUserOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		orders, err := h.svc.UserOrders(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func (h *Handler) GetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		order, err := h.svc.Order(ctx, actor, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func (h *Handler) ConfirmOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/confirm"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.ConfirmInput
		if c.Request.ContentLength != 0 && !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		order, err := h.svc.Confirm(ctx, actor.ID, c.Param("id"), req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func (h *Handler) PayOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/pay"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		order, err := h.svc.Pay(ctx, actor.ID, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func (h *Handler) CancelOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/cancel"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		order, err := h.svc.Cancel(ctx, actor, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/* =========================
   DELIVERY
========================= */

func (h *Handler) GetAvailableDeliveries() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /agent/deliveries"
		defer handlePanic(c, route)

		ctx, cancel := h.requestContext(c)
		defer cancel()

		orders, err := h.svc.AvailableDeliveries(ctx)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func (h *Handler) GetAgentOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /agent/orders"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		orders, err := h.svc.AgentOrders(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func (h *Handler) AcceptDelivery() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /agent/orders/:id/accept"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		order, err := h.svc.Accept(ctx, actor.ID, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func (h *Handler) CompleteDelivery() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /agent/orders/:id/deliver"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		order, err := h.svc.Deliver(ctx, actor.ID, c.Param("id"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
