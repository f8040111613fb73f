package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

// UserAuth admits shoppers. Admins pass too so they can act on support cases.
func UserAuth(tokens TokenParser) gin.HandlerFunc {
	return AuthGuard(tokens, models.RoleUser, models.RoleAdmin)
}

// ActorFrom returns the caller stored by AuthGuard.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	value, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	return actor, ok
}

// bearerToken extracts the token from the Authorization header, aborting
// with 401 when it is missing or malformed.
func bearerToken(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		log.Println("[AUTH] [ERROR] missing token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token", "kind": "unauthorized"})
		return "", false
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		log.Println("[AUTH] [ERROR] invalid token format")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "kind": "unauthorized"})
		return "", false
	}
	return parts[1], true
}
