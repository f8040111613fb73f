package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)
		log.Printf("[%s] hit", route)

		var req service.RegisterInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		tokens, err := h.svc.Register(ctx, req)
		if err != nil {
			respondError(c, route, err)
			return
		}

		log.Printf("[%s] registered %s as %s", route, tokens.User.ID.Hex(), tokens.User.Role)
		c.JSON(http.StatusCreated, tokens)
	}
}

func (h *Handler) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req service.LoginInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		tokens, err := h.svc.Login(ctx, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

func (h *Handler) Refresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)

		var req refreshRequest
		if !bindJSON(c, route, &req) {
			return
		}
		if req.RefreshToken == "" {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		tokens, err := h.svc.Refresh(ctx, req.RefreshToken)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

func (h *Handler) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req refreshRequest
		if !bindJSON(c, route, &req) {
			return
		}
		if req.RefreshToken == "" {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		if err := h.svc.Logout(ctx, req.RefreshToken); err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}
