// Package apiserver holds the gin wiring shared by both binaries: security
// headers and shared-secret API key authentication, adapted from
// codeready-toolchain-tarsy/pkg/api/middleware.go (originally written for
// echo) to gin's middleware signature.
package apiserver

import "github.com/gin-gonic/gin"

// SecurityHeaders sets a conservative set of response headers on every
// request.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// APIKeyAuth verifies a shared-secret header when enabled. When disabled (or
// no keys configured) it is a no-op, matching the original's
// _build_auth_dependency behavior.
func APIKeyAuth(enabled bool, headerName string, validKeys []string) gin.HandlerFunc {
	if !enabled || len(validKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	keySet := make(map[string]struct{}, len(validKeys))
	for _, k := range validKeys {
		keySet[k] = struct{}{}
	}
	return func(c *gin.Context) {
		key := c.GetHeader(headerName)
		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(401, gin.H{"detail": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}
