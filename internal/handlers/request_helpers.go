package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/apperr"
	"marketplace/internal/middleware"
	"marketplace/internal/service"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": apperr.KindInternal})
	}
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kindForStatus(status)})
}

// respondError writes the classified envelope for err. Internal causes are
// logged but never echoed to the client.
func respondError(c *gin.Context, route string, err error) {
	appErr := apperr.From(err)
	status := appErr.Status()

	if appErr.Err != nil {
		log.Printf("[%s] cause: %v", route, appErr.Err)
	}
	log.Printf("[%s] returning error %d: %s", route, status, appErr.Message)

	body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	if appErr.Retryable() {
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(status, body)
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindValidation
	case http.StatusUnauthorized:
		return apperr.KindUnauthorized
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusServiceUnavailable:
		return apperr.KindUnavailable
	default:
		return apperr.KindInternal
	}
}

// bindJSON decodes the body into dst. Malformed JSON is a validation
// failure; field rules are checked by the service.
func bindJSON(c *gin.Context, route string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.Printf("[%s] invalid body: %v", route, err)
		respondError(c, route, apperr.Validation(map[string]string{"body": "must be valid JSON"}))
		return false
	}
	return true
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// caller returns the authenticated actor or aborts with 401.
func caller(c *gin.Context, route string) (service.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		log.Printf("[%s] [ERROR] actor missing in context", route)
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
		return service.Actor{}, false
	}
	return actor, true
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ensureDBConnection pings db. A nil db is the in-memory store and always up.
func ensureDBConnection(ctx context.Context, db Pinger) error {
	if db == nil {
		return nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Ping(checkCtx)
}
