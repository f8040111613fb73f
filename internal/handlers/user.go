package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

func (h *Handler) GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /me"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		user, err := h.svc.Me(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func (h *Handler) GetUserAddresses() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /me/addresses"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		user, err := h.svc.Me(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"addresses": user.Addresses})
	}
}

func (h *Handler) CreateUserAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /me/addresses"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		var req service.AddressInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		addresses, err := h.svc.AddAddress(ctx, actor.ID, req)
		if err != nil {
			respondError(c, route, err)
			return
		}

		log.Println("[ADDRESS] [INFO] address created for", actor.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{"addresses": addresses})
	}
}

func (h *Handler) DeleteUserAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /me/addresses/:id"
		defer handlePanic(c, route)

		actor, ok := caller(c, route)
		if !ok {
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		if addressID == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		addresses, err := h.svc.DeleteAddress(ctx, actor.ID, addressID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		log.Println("[ADDRESS] [INFO] address deleted:", addressID)
		c.JSON(http.StatusOK, gin.H{"addresses": addresses})
	}
}
