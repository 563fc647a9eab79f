// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"strings"

	"subscription-service/internal/domain/auth"
	"subscription-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ctxPrincipal = "principal"
	ctxUserID    = "user_id"
	ctxUsername  = "username"
	ctxJTI       = "jti"
)

// TokenValidator resolves a bearer token to the caller
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Principal, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Auth rejects requests without a valid, unrevoked bearer token
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Unauthorized(c, "missing authorization token")
			return
		}

		principal, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.FromError(c, "could not validate credentials", err)
			return
		}

		c.Set(ctxPrincipal, principal)
		c.Set(ctxUserID, principal.UserID)
		c.Set(ctxUsername, principal.Username)
		c.Set(ctxJTI, principal.TokenID)

		c.Next()
	}
}

// ExtractToken reads the Bearer token from the Authorization header
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func GetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxJTI)
	if !exists {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, exists := c.Get(ctxPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}
