package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader    = "X-API-Key"
	adminNameHeader = "X-Admin-User"
	adminKey        = "admin_name"
)

// APIKeyMiddleware guards operator endpoints with the X-API-Key header.
// With no key configured the endpoints are switched off.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "admin API disabled",
			})
			return
		}

		provided := c.GetHeader(apiKeyHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		name := c.GetHeader(adminNameHeader)
		if name == "" {
			name = "admin"
		}
		c.Set(adminKey, name)
		c.Next()
	}
}

// AdminName identifies the operator behind an API-key request, for audit fields.
func AdminName(c *gin.Context) string {
	return c.GetString(adminKey)
}
