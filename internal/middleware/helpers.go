// internal/middleware/helpers.go
package middleware

import (
	"subscription-service/internal/domain/auth"

	"github.com/gin-gonic/gin"
)

// MustGetUserID gets the user ID from context or panics
func MustGetUserID(c *gin.Context) int64 {
	userID, exists := GetUserID(c)
	if !exists {
		panic("user_id not found in context")
	}
	return userID
}

// MustGetPrincipal gets the principal from context or panics
func MustGetPrincipal(c *gin.Context) *auth.Principal {
	p, exists := GetPrincipal(c)
	if !exists {
		panic("principal not found in context")
	}
	return p
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxUserID)
	return exists
}

// routeOf returns the matched route template, or "unmatched" for 404s.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
