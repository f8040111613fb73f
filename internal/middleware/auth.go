package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

const actorKey = "actor"

// TokenParser verifies an access token and returns its caller.
type TokenParser interface {
	ParseAccessToken(raw string) (service.Actor, error)
}

// AuthGuard admits requests carrying a valid bearer token whose role is one
// of allowedRoles. No roles means any authenticated caller.
func AuthGuard(tokens TokenParser, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			return
		}

		actor, err := tokens.ParseAccessToken(raw)
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "kind": "unauthorized"})
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if actor.Role == r {
					match = true
					break
				}
			}
			if !match {
				log.Printf("[AUTH] [ERROR] role %q not allowed on %s", actor.Role, c.FullPath())
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "kind": "forbidden"})
				return
			}
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func AdminAuth(tokens TokenParser) gin.HandlerFunc {
	return AuthGuard(tokens, models.RoleAdmin)
}

func VendorAuth(tokens TokenParser) gin.HandlerFunc {
	return AuthGuard(tokens, models.RoleVendor)
}

func AgentAuth(tokens TokenParser) gin.HandlerFunc {
	return AuthGuard(tokens, models.RoleAgent)
}
