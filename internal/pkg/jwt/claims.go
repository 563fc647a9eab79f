// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

const PurposeAccess = "access"

// Claims represents the JWT claims. Subject carries the username.
type Claims struct {
	UserID         int64  `json:"uid"`
	SessionPurpose string `json:"session_purpose"`
	jwt.RegisteredClaims
}

// Username returns the subject the token was issued for
func (c *Claims) Username() string {
	return c.Subject
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
