package api

import (
	"net/http"
	"strconv"
	"time"

	"tickify/internal/models"
	"tickify/internal/util"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "identity"

// AuthRequired resolves the caller identity from the headers set by the
// upstream gateway that terminates authentication. The core trusts this
// capability opaquely.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-Id")
		role := c.GetHeader("X-User-Role")
		if id == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing credentials"})
			return
		}

		switch role {
		case models.RoleCustomer, models.RoleMerchant, models.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown role"})
			return
		}

		c.Set(identityContextKey, models.Identity{ID: id, Role: role})
		c.Next()
	}
}

// RequireRole restricts a route to the given roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := identityFrom(c)
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
	}
}

func identityFrom(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityContextKey); ok {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Identity{}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
